package session

import (
	"sync"

	"github.com/jinzhu/copier"
)

// Speaker identifies the author of a transcript entry.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// TranscriptEntry is one turn of the conversation transcript. A user entry
// starts out non-final while recognition is still refining it; the finalized
// text replaces the partial in place.
type TranscriptEntry struct {
	TurnID  int
	Speaker Speaker
	Text    string
	Final   bool
}

// transcriptLedger is the ordered conversation transcript. Entries correlate
// by turn, not by text content, so a finalized transcript replaces the right
// partial even when recognition rewrote the wording entirely.
type transcriptLedger struct {
	mu       sync.Mutex
	entries  []TranscriptEntry
	nextTurn int
}

func newTranscriptLedger() *transcriptLedger {
	return &transcriptLedger{}
}

// ApplyPartialTranscript records in-progress recognition for the current user
// turn. Consecutive partials update the same entry; a partial arriving after
// the turn was finalized starts a new turn.
func (l *transcriptLedger) ApplyPartialTranscript(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last := l.lastUserEntry(); last != nil && !last.Final {
		last.Text = text
		return
	}

	l.entries = append(l.entries, TranscriptEntry{
		TurnID:  l.allocateTurn(),
		Speaker: SpeakerUser,
		Text:    text,
	})
}

// ApplyFinalTranscript finalizes the current user turn, replacing any partial
// text. Finalizing an already-final turn is a no-op; a final with no
// preceding partial creates the turn directly.
func (l *transcriptLedger) ApplyFinalTranscript(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last := l.lastUserEntry(); last != nil && !last.Final {
		last.Text = text
		last.Final = true
		return
	}
	if last := l.lastUserEntry(); last != nil && last.Final && last.Text == text {
		return
	}

	l.entries = append(l.entries, TranscriptEntry{
		TurnID:  l.allocateTurn(),
		Speaker: SpeakerUser,
		Text:    text,
		Final:   true,
	})
}

// AppendUserText records typed user input as an already-final turn.
func (l *transcriptLedger) AppendUserText(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, TranscriptEntry{
		TurnID:  l.allocateTurn(),
		Speaker: SpeakerUser,
		Text:    text,
		Final:   true,
	})
}

// ApplyResponseText accumulates the agent's response for the current agent
// turn. Successive chunks carrying the same running text keep the latest
// version; an empty text leaves the ledger untouched.
func (l *transcriptLedger) ApplyResponseText(text string) {
	if text == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 0 {
		last := &l.entries[len(l.entries)-1]
		if last.Speaker == SpeakerAgent && !last.Final {
			last.Text = text
			return
		}
	}

	l.entries = append(l.entries, TranscriptEntry{
		TurnID:  l.allocateTurn(),
		Speaker: SpeakerAgent,
		Text:    text,
	})
}

// Entries returns a snapshot of the transcript in arrival order.
func (l *transcriptLedger) Entries() []TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := []TranscriptEntry{}
	_ = copier.Copy(&entries, &l.entries)
	return entries
}

func (l *transcriptLedger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	l.nextTurn = 0
}

// lastUserEntry returns the trailing user entry, or nil when the ledger is
// empty or the conversation moved on to an agent turn. Callers hold l.mu.
func (l *transcriptLedger) lastUserEntry() *TranscriptEntry {
	if len(l.entries) == 0 {
		return nil
	}
	last := &l.entries[len(l.entries)-1]
	if last.Speaker != SpeakerUser {
		return nil
	}
	return last
}

// allocateTurn hands out the next turn id and finalizes the trailing agent
// entry, since a new turn means the agent's previous response is complete.
// Callers hold l.mu.
func (l *transcriptLedger) allocateTurn() int {
	if len(l.entries) > 0 {
		last := &l.entries[len(l.entries)-1]
		if last.Speaker == SpeakerAgent {
			last.Final = true
		}
	}

	turn := l.nextTurn
	l.nextTurn++
	return turn
}
