package events

const (
	// KindUplinkReady identifies a successfully opened audio channel.
	KindUplinkReady Kind = "uplink.ready"
	// KindUplinkClosed identifies audio channel closure.
	KindUplinkClosed Kind = "uplink.closed"
)

// UplinkReady marks the audio channel as open and accepting frames.
type UplinkReady struct{ Base }

// NewUplinkReady creates an uplink ready event.
func NewUplinkReady() UplinkReady {
	return UplinkReady{Base: NewBase(KindUplinkReady)}
}

// UplinkClosed marks audio channel closure; Err is nil for a local close.
type UplinkClosed struct {
	Base
	Err error
}

// NewUplinkClosed creates an uplink closed event.
func NewUplinkClosed(err error) UplinkClosed {
	return UplinkClosed{Base: NewBase(KindUplinkClosed), Err: err}
}
