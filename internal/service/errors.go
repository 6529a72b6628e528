package service

import (
	"errors"
	"fmt"
)

var (
	ErrListingFailed    = errors.New("listing view failed")
	ErrNoSuitableFormat = errors.New("no suitable video/audio format pair")
	ErrStreamFetch      = errors.New("stream fetch failed")
	ErrTranscode        = errors.New("transcode failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPanic            = errors.New("panic")
)

// recoverInto stores a recovered panic in *err. It must be deferred directly.
func recoverInto(err *error) {
	if p := recover(); p != nil {
		*err = panicError(p)
	}
}

// panicError turns a recovered value into an error wrapping ErrPanic.
func panicError(p any) error {
	return fmt.Errorf("%w: %v", ErrPanic, p)
}

// AcquisitionError reports a failed acquisition of one candidate. Kind is one of
// ErrNoSuitableFormat, ErrStreamFetch or ErrTranscode.
type AcquisitionError struct {
	VideoID string
	Title   string
	Kind    error
	Err     error
}

func newAcquisitionError(videoID, title string, kind, err error) *AcquisitionError {
	return &AcquisitionError{VideoID: videoID, Title: title, Kind: kind, Err: err}
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acquire %s (%q): %v", e.VideoID, e.Title, e.Kind)
	}
	return fmt.Sprintf("acquire %s (%q): %v: %v", e.VideoID, e.Title, e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ChannelError reports a channel run that aborted.
type ChannelError struct {
	ChannelURL string
	Err        error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.ChannelURL, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }
