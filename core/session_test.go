package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bizjuned/conversational-ai-assistant/core/audio"
	"github.com/bizjuned/conversational-ai-assistant/core/backend"
	"github.com/bizjuned/conversational-ai-assistant/core/events"
	"github.com/bizjuned/conversational-ai-assistant/core/room"
)

type streamHandle struct {
	mu     sync.Mutex
	closes int
}

func (h *streamHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

type streamOpenerStub struct {
	mu         sync.Mutex
	openErr    error
	dropOnOpen int
	attempts   int
	opens      []string
	options    []backend.EventStreamOptions
	handles    []*streamHandle
}

func (s *streamOpenerStub) OpenEventStream(_ context.Context, conversationID string, opts ...backend.EventStreamOption) (EventStream, error) {
	s.mu.Lock()
	s.attempts++

	if s.openErr != nil {
		err := s.openErr
		s.mu.Unlock()
		return nil, err
	}

	options := backend.EventStreamOptions{OnEvent: func(events.Event) {}, OnClosed: func(error) {}}
	for _, opt := range opts {
		opt(&options)
	}

	handle := &streamHandle{}
	s.opens = append(s.opens, conversationID)
	s.options = append(s.options, options)
	s.handles = append(s.handles, handle)

	drop := s.dropOnOpen > 0
	if drop {
		s.dropOnOpen--
	}
	s.mu.Unlock()

	// The connection can die while the open call is still on its way back to
	// the caller; reproduce that by reporting the drop before returning.
	if drop {
		options.OnClosed(errors.New("connection reset during open"))
	}
	return handle, nil
}

func (s *streamOpenerStub) setOpenErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

func (s *streamOpenerStub) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opens)
}

func (s *streamOpenerStub) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *streamOpenerStub) emit(event events.Event) {
	s.mu.Lock()
	onEvent := s.options[len(s.options)-1].OnEvent
	s.mu.Unlock()
	onEvent(event)
}

func (s *streamOpenerStub) dropStream(err error) {
	s.mu.Lock()
	onClosed := s.options[len(s.options)-1].OnClosed
	s.mu.Unlock()
	onClosed(err)
}

type channelStub struct {
	mu     sync.Mutex
	frames [][]byte
	closes int
}

func (c *channelStub) SendFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *channelStub) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *channelStub) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type channelOpenerStub struct {
	mu       sync.Mutex
	openErr  error
	opens    []string
	options  []backend.AudioChannelOptions
	channels []*channelStub
}

func (s *channelOpenerStub) OpenAudioChannel(_ context.Context, conversationID string, opts ...backend.AudioChannelOption) (AudioChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openErr != nil {
		return nil, s.openErr
	}

	options := backend.AudioChannelOptions{
		OnClosed:     func(error) {},
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	channel := &channelStub{}
	s.opens = append(s.opens, conversationID)
	s.options = append(s.options, options)
	s.channels = append(s.channels, channel)
	return channel, nil
}

func (s *channelOpenerStub) lastChannel() *channelStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[len(s.channels)-1]
}

func (s *channelOpenerStub) dropChannel(err error) {
	s.mu.Lock()
	onClosed := s.options[len(s.options)-1].OnClosed
	s.mu.Unlock()
	onClosed(err)
}

type trackStub struct {
	mu       sync.Mutex
	onFrame  func([]byte)
	stops    int
	releases int
}

func (t *trackStub) Start(_ context.Context, onFrame func([]byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFrame = onFrame
	return nil
}

func (t *trackStub) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	return nil
}

func (t *trackStub) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releases++
}

func (t *trackStub) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (t *trackStub) feed(frame []byte) {
	t.mu.Lock()
	onFrame := t.onFrame
	t.mu.Unlock()
	if onFrame != nil {
		onFrame(frame)
	}
}

type roomStub struct {
	mu         sync.Mutex
	joinErr    error
	acquireErr error
	joins      []string
	tracks     []*trackStub

	enteredAcquire chan struct{}
	blockAcquire   chan struct{}
}

func (r *roomStub) Join(_ context.Context, roomName string) (room.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.joinErr != nil {
		return room.Credential{}, r.joinErr
	}
	r.joins = append(r.joins, roomName)
	return room.Credential{Token: "jwt-token", Identity: "user-1"}, nil
}

func (r *roomStub) AcquireMicrophone(_ context.Context) (room.Track, error) {
	if r.enteredAcquire != nil {
		select {
		case r.enteredAcquire <- struct{}{}:
		default:
		}
	}
	if r.blockAcquire != nil {
		<-r.blockAcquire
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acquireErr != nil {
		return nil, r.acquireErr
	}
	track := &trackStub{}
	r.tracks = append(r.tracks, track)
	return track, nil
}

func (r *roomStub) lastTrack() *trackStub {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracks[len(r.tracks)-1]
}

type textSenderStub struct {
	mu      sync.Mutex
	sendErr error
	sent    []string
	ids     []string
}

func (s *textSenderStub) SendText(_ context.Context, conversationID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendErr != nil {
		return s.sendErr
	}
	s.ids = append(s.ids, conversationID)
	s.sent = append(s.sent, text)
	return nil
}

type sessionFixture struct {
	controller *Controller
	streams    *streamOpenerStub
	channels   *channelOpenerStub
	rooms      *roomStub
	texts      *textSenderStub
	sink       *sinkStub
}

func newSessionFixture(opts ...ControllerOption) *sessionFixture {
	fixture := &sessionFixture{
		streams:  &streamOpenerStub{},
		channels: &channelOpenerStub{},
		rooms:    &roomStub{},
		texts:    &textSenderStub{},
		sink:     &sinkStub{},
	}

	options := append([]ControllerOption{
		WithEventStreamOpener(fixture.streams),
		WithAudioChannelOpener(fixture.channels),
		WithTextSender(fixture.texts),
		WithRoomService(fixture.rooms),
		WithSinkBuffer(fixture.sink),
	}, opts...)

	fixture.controller = NewController(options...)
	return fixture
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

func TestConnectEstablishesSession(t *testing.T) {
	fixture := newSessionFixture()
	var states []ConnectionState

	err := fixture.controller.Connect(context.Background(),
		OnConnectionStateChanged(func(state ConnectionState) {
			states = append(states, state)
		}),
	)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	if got := fixture.controller.State(); got != StateConnected {
		t.Fatalf("expected connected state, got %q", got)
	}
	if fixture.controller.ConversationID() == "" {
		t.Fatalf("expected a conversation id to be assigned")
	}
	if got := fixture.controller.Identity(); got != "user-1" {
		t.Fatalf("expected room identity, got %q", got)
	}
	if fixture.controller.MicrophoneActive() {
		t.Fatalf("expected the microphone to stay off after connect")
	}
	if len(states) != 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Fatalf("expected connecting then connected, got %v", states)
	}
	if fixture.streams.openCount() != 1 {
		t.Fatalf("expected one event stream, got %d", fixture.streams.openCount())
	}
	if fixture.streams.opens[0] != fixture.controller.ConversationID() {
		t.Fatalf("expected the stream to carry the conversation id")
	}
}

func TestConnectWhileActiveFails(t *testing.T) {
	fixture := newSessionFixture()

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if err := fixture.controller.Connect(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestConnectRoomJoinFailureTearsDown(t *testing.T) {
	fixture := newSessionFixture()
	fixture.rooms.joinErr = errors.New("token endpoint unreachable")

	err := fixture.controller.Connect(context.Background())

	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Stage != "room join" {
		t.Fatalf("expected a room join connection error, got %v", err)
	}
	if got := fixture.controller.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected state after failure, got %q", got)
	}
	if fixture.streams.openCount() != 0 {
		t.Fatalf("expected no event stream after room failure, got %d", fixture.streams.openCount())
	}
}

func TestConnectStreamFailureTearsDown(t *testing.T) {
	fixture := newSessionFixture()
	fixture.streams.openErr = errors.New("dial refused")

	err := fixture.controller.Connect(context.Background())

	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Stage != "event stream" {
		t.Fatalf("expected an event stream connection error, got %v", err)
	}
	if got := fixture.controller.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected state after failure, got %q", got)
	}

	// A later connect starts over cleanly.
	fixture.streams.openErr = nil
	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	fixture := newSessionFixture()

	if err := fixture.controller.Disconnect(); err != nil {
		t.Fatalf("expected disconnect without a session to be a no-op, got %v", err)
	}

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if err := fixture.controller.Disconnect(); err != nil {
		t.Fatalf("expected disconnect to succeed, got %v", err)
	}
	if err := fixture.controller.Disconnect(); err != nil {
		t.Fatalf("expected repeated disconnect to be a no-op, got %v", err)
	}
}

func TestDisconnectClosesChannelsAndStopsPlayback(t *testing.T) {
	fixture := newSessionFixture()

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	fixture.streams.emit(events.NewSpeechChunk([]byte{1, 2, 3}, "Hi"))

	if err := fixture.controller.Disconnect(); err != nil {
		t.Fatalf("expected disconnect to succeed, got %v", err)
	}

	if got := fixture.controller.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected state, got %q", got)
	}
	if fixture.streams.handles[0].closes == 0 {
		t.Fatalf("expected the event stream to be closed")
	}
	if fixture.sink.resets == 0 {
		t.Fatalf("expected queued playback to be dropped")
	}
	if entries := fixture.controller.Transcript(); len(entries) != 0 {
		t.Fatalf("expected the transcript to be cleared, got %+v", entries)
	}
}

func TestReconnectKeepsConversationID(t *testing.T) {
	fixture := newSessionFixture(WithReconnectBackoff(20 * time.Millisecond))
	var channelErrs []error

	err := fixture.controller.Connect(context.Background(),
		OnChannelError(func(err error) { channelErrs = append(channelErrs, err) }),
	)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	conversationID := fixture.controller.ConversationID()

	fixture.streams.dropStream(errors.New("connection reset"))

	waitFor(t, func() bool { return fixture.streams.openCount() == 2 }, "reconnect")

	if fixture.streams.opens[1] != conversationID {
		t.Fatalf("expected reconnect with the same conversation id, got %q", fixture.streams.opens[1])
	}
	if fixture.controller.State() != StateConnected {
		t.Fatalf("expected the session to stay connected across the drop")
	}
	if len(channelErrs) == 0 {
		t.Fatalf("expected the drop to be reported")
	}
}

func TestReconnectAfterDropDuringOpen(t *testing.T) {
	fixture := newSessionFixture(WithReconnectBackoff(10 * time.Millisecond))
	fixture.streams.dropOnOpen = 1

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	conversationID := fixture.controller.ConversationID()

	waitFor(t, func() bool { return fixture.streams.openCount() == 2 }, "reconnect after a drop during open")

	if fixture.streams.opens[1] != conversationID {
		t.Fatalf("expected reconnect with the same conversation id, got %q", fixture.streams.opens[1])
	}
	if fixture.controller.State() != StateConnected {
		t.Fatalf("expected the session to stay connected across the drop")
	}
}

func TestReconnectAttemptsPacedByBackoff(t *testing.T) {
	backoff := 50 * time.Millisecond
	fixture := newSessionFixture(WithReconnectBackoff(backoff))

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	conversationID := fixture.controller.ConversationID()

	fixture.streams.setOpenErr(errors.New("dial refused"))
	start := time.Now()
	fixture.streams.dropStream(errors.New("connection reset"))

	waitFor(t, func() bool { return fixture.streams.attemptCount() >= 4 }, "repeated reconnect attempts")
	elapsed := time.Since(start)

	// The connect was attempt one; the drop schedules attempt two a full
	// backoff later and every failure re-arms the timer, so reaching attempt
	// four takes at least three backoff intervals.
	if elapsed < 3*backoff {
		t.Fatalf("expected at most one attempt per %v, got three retries in %v", backoff, elapsed)
	}

	fixture.streams.setOpenErr(nil)
	waitFor(t, func() bool { return fixture.streams.openCount() == 2 }, "reconnect once the backend recovers")
	if fixture.streams.opens[1] != conversationID {
		t.Fatalf("expected reconnect with the same conversation id, got %q", fixture.streams.opens[1])
	}
}

func TestNoReconnectAfterDisconnect(t *testing.T) {
	fixture := newSessionFixture(WithReconnectBackoff(10 * time.Millisecond))

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if err := fixture.controller.Disconnect(); err != nil {
		t.Fatalf("expected disconnect to succeed, got %v", err)
	}

	fixture.streams.dropStream(errors.New("connection reset"))

	time.Sleep(50 * time.Millisecond)
	if got := fixture.streams.openCount(); got != 1 {
		t.Fatalf("expected no reconnect after disconnect, got %d opens", got)
	}
}

func TestToggleMicrophoneStreamsCaptureFrames(t *testing.T) {
	fixture := newSessionFixture()
	var micStates []bool

	err := fixture.controller.Connect(context.Background(),
		OnMicrophoneStateChanged(func(active bool) { micStates = append(micStates, active) }),
	)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	active, err := fixture.controller.ToggleMicrophone(context.Background())
	if err != nil || !active {
		t.Fatalf("expected the microphone to turn on, got active=%v err=%v", active, err)
	}
	if !fixture.controller.MicrophoneActive() {
		t.Fatalf("expected microphone state to read active")
	}
	if fixture.channels.opens[0] != fixture.controller.ConversationID() {
		t.Fatalf("expected the audio channel to carry the conversation id")
	}

	track := fixture.rooms.lastTrack()
	track.feed([]byte{1, 2})
	track.feed([]byte{3, 4})

	channel := fixture.channels.lastChannel()
	if got := channel.frameCount(); got != 2 {
		t.Fatalf("expected both capture frames on the channel, got %d", got)
	}

	active, err = fixture.controller.ToggleMicrophone(context.Background())
	if err != nil || active {
		t.Fatalf("expected the microphone to turn off, got active=%v err=%v", active, err)
	}
	if channel.closes == 0 {
		t.Fatalf("expected the audio channel to be closed")
	}
	if track.releases == 0 {
		t.Fatalf("expected the microphone track to be released")
	}
	if len(micStates) != 2 || !micStates[0] || micStates[1] {
		t.Fatalf("expected microphone transitions [true false], got %v", micStates)
	}
	if !fixture.controller.Thinking() {
		t.Fatalf("expected thinking while the backend finishes the utterance")
	}
}

func TestToggleMicrophoneRejectsConcurrentToggle(t *testing.T) {
	fixture := newSessionFixture()
	fixture.rooms.enteredAcquire = make(chan struct{}, 1)
	fixture.rooms.blockAcquire = make(chan struct{})

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := fixture.controller.ToggleMicrophone(context.Background())
		result <- err
	}()

	<-fixture.rooms.enteredAcquire

	if _, err := fixture.controller.ToggleMicrophone(context.Background()); !errors.Is(err, ErrToggleInFlight) {
		t.Fatalf("expected ErrToggleInFlight, got %v", err)
	}

	close(fixture.rooms.blockAcquire)
	if err := <-result; err != nil {
		t.Fatalf("expected the first toggle to finish cleanly, got %v", err)
	}
	if !fixture.controller.MicrophoneActive() {
		t.Fatalf("expected the microphone to be on after the first toggle")
	}
}

func TestDisconnectDuringToggleReleasesMicrophone(t *testing.T) {
	fixture := newSessionFixture()
	fixture.rooms.enteredAcquire = make(chan struct{}, 1)
	fixture.rooms.blockAcquire = make(chan struct{})

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	type toggleResult struct {
		active bool
		err    error
	}
	result := make(chan toggleResult, 1)
	go func() {
		active, err := fixture.controller.ToggleMicrophone(context.Background())
		result <- toggleResult{active: active, err: err}
	}()

	<-fixture.rooms.enteredAcquire
	if err := fixture.controller.Disconnect(); err != nil {
		t.Fatalf("expected disconnect to succeed, got %v", err)
	}
	close(fixture.rooms.blockAcquire)

	got := <-result
	if got.active || !errors.Is(got.err, ErrNoActiveSession) {
		t.Fatalf("expected the toggle to lose to disconnect, got active=%v err=%v", got.active, got.err)
	}
	if track := fixture.rooms.lastTrack(); track.releases == 0 {
		t.Fatalf("expected the microphone track to be released")
	}
	if channel := fixture.channels.lastChannel(); channel.closes == 0 {
		t.Fatalf("expected the audio channel to be closed")
	}
	if fixture.controller.MicrophoneActive() {
		t.Fatalf("expected no active microphone after disconnect")
	}
}

func TestToggleMicrophoneFailureLeavesSessionConnected(t *testing.T) {
	fixture := newSessionFixture()
	fixture.channels.openErr = errors.New("dial refused")

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	if _, err := fixture.controller.ToggleMicrophone(context.Background()); !errors.Is(err, ErrUplinkUnavailable) {
		t.Fatalf("expected ErrUplinkUnavailable, got %v", err)
	}
	if fixture.controller.State() != StateConnected {
		t.Fatalf("expected the session to survive the uplink failure")
	}
	if fixture.rooms.lastTrack().releases == 0 {
		t.Fatalf("expected the microphone track to be released on failure")
	}

	// The failure is retryable once the channel can be opened.
	fixture.channels.openErr = nil
	if active, err := fixture.controller.ToggleMicrophone(context.Background()); err != nil || !active {
		t.Fatalf("expected the retry to succeed, got active=%v err=%v", active, err)
	}
}

func TestUplinkDropReleasesMicrophone(t *testing.T) {
	fixture := newSessionFixture()
	var micStates []bool

	err := fixture.controller.Connect(context.Background(),
		OnMicrophoneStateChanged(func(active bool) { micStates = append(micStates, active) }),
	)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if _, err := fixture.controller.ToggleMicrophone(context.Background()); err != nil {
		t.Fatalf("expected toggle to succeed, got %v", err)
	}

	fixture.channels.dropChannel(errors.New("connection reset"))

	if fixture.controller.MicrophoneActive() {
		t.Fatalf("expected the microphone to be off after the uplink drop")
	}
	if fixture.rooms.lastTrack().releases == 0 {
		t.Fatalf("expected the microphone track to be released")
	}
	if fixture.controller.State() != StateConnected {
		t.Fatalf("expected the session to stay connected")
	}
	if len(micStates) != 2 || micStates[1] {
		t.Fatalf("expected microphone transitions [true false], got %v", micStates)
	}
}

func TestSendTextWhileMicrophoneActiveFails(t *testing.T) {
	fixture := newSessionFixture()

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if _, err := fixture.controller.ToggleMicrophone(context.Background()); err != nil {
		t.Fatalf("expected toggle to succeed, got %v", err)
	}

	if err := fixture.controller.SendText(context.Background(), "hello"); !errors.Is(err, ErrMicrophoneActive) {
		t.Fatalf("expected ErrMicrophoneActive, got %v", err)
	}
}

func TestSendTextRecordsTurnAndThinking(t *testing.T) {
	fixture := newSessionFixture()
	var thinking []bool

	err := fixture.controller.Connect(context.Background(),
		OnThinkingStateChanged(func(active bool) { thinking = append(thinking, active) }),
	)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	if err := fixture.controller.SendText(context.Background(), "what is the weather"); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}

	entries := fixture.controller.Transcript()
	if len(entries) != 1 || entries[0].Text != "what is the weather" || !entries[0].Final {
		t.Fatalf("expected one final user entry, got %+v", entries)
	}
	if len(thinking) != 1 || !thinking[0] {
		t.Fatalf("expected thinking to turn on, got %v", thinking)
	}
	if len(fixture.texts.sent) != 1 || fixture.texts.ids[0] != fixture.controller.ConversationID() {
		t.Fatalf("expected the request to carry the conversation id")
	}
}

func TestSendTextFailureClearsThinking(t *testing.T) {
	fixture := newSessionFixture()
	fixture.texts.sendErr = errors.New("backend unavailable")

	if err := fixture.controller.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	if err := fixture.controller.SendText(context.Background(), "hello"); err == nil {
		t.Fatalf("expected the request failure to surface")
	}
	if fixture.controller.Thinking() {
		t.Fatalf("expected thinking to clear after the failure")
	}
}

func TestConversationRoundTrip(t *testing.T) {
	fixture := newSessionFixture()
	var speaking []bool

	err := fixture.controller.Connect(context.Background(),
		OnSpeakingStateChanged(func(active bool) { speaking = append(speaking, active) }),
	)
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	if _, err := fixture.controller.ToggleMicrophone(context.Background()); err != nil {
		t.Fatalf("expected toggle to succeed, got %v", err)
	}

	fixture.streams.emit(events.NewTranscriptPartial("hel"))
	fixture.streams.emit(events.NewTranscriptFinal("hello"))
	fixture.streams.emit(events.NewThinking(true))
	fixture.streams.emit(events.NewSpeechChunk([]byte{1, 2, 3, 4}, "Hi there"))

	entries := fixture.controller.Transcript()
	if len(entries) != 2 {
		t.Fatalf("expected user and agent turns, got %+v", entries)
	}
	if entries[0].Text != "hello" || !entries[0].Final || entries[0].Speaker != SpeakerUser {
		t.Fatalf("expected final user turn %q, got %+v", "hello", entries[0])
	}
	if entries[1].Text != "Hi there" || entries[1].Speaker != SpeakerAgent {
		t.Fatalf("expected agent turn %q, got %+v", "Hi there", entries[1])
	}

	if fixture.controller.Thinking() {
		t.Fatalf("expected thinking to clear once speech arrived")
	}
	if !fixture.controller.Speaking() {
		t.Fatalf("expected speaking while the chunk plays")
	}

	fixture.sink.complete(nil)

	if fixture.controller.Speaking() {
		t.Fatalf("expected silence after playback finished")
	}
	if len(speaking) != 2 || !speaking[0] || speaking[1] {
		t.Fatalf("expected speaking transitions [true false], got %v", speaking)
	}
}
