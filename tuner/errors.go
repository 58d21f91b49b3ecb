package tuner

import (
	"errors"
	"strconv"

	"p600/core"
)

var (
	// ErrSyncTimeout reports a status poll that ran out of budget. It is
	// counted by the synchronizer and never ends a measurement by itself.
	ErrSyncTimeout = errors.New("tuner: synchronizer timeout")

	// ErrUntunable reports a stage that does not oscillate observably.
	ErrUntunable = errors.New("tuner: untunable")

	errSyncIdle = errors.New("tuner: synchronizer not armed")
)

// ChannelError reports the marker at which a channel's search gave up.
type ChannelError struct {
	CV       core.CV
	Marker   int
	Timeouts int // status timeouts counted by the meter, when it counts them
	Err      error
}

func (e *ChannelError) Error() string {
	return "tuner: " + e.CV.String() + " at marker " + strconv.Itoa(e.Marker) + ": " + e.Err.Error()
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
