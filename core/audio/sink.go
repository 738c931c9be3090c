package audio

import "errors"

// ErrSinkBusy is reported by single-writer playback sinks when an append is
// attempted while a previous append has not completed yet.
var ErrSinkBusy = errors.New("audio sink busy")
