package domain

import "time"

// AcquisitionFailure is one candidate that went through acquisition and failed.
type AcquisitionFailure struct {
	ID    string
	Title string
	Err   error
}

// ChannelOutcome holds the result of one channel run.
type ChannelOutcome struct {
	ChannelURL      string
	Unique          int
	Shorts          int
	Normals         int
	AlreadyAcquired int
	Selected        int
	Acquired        []AcquisitionRecord
	Failed          []AcquisitionFailure
	FailedViews     []ListingView
	NewCursor       string
	Duration        time.Duration
}

type ChannelReport struct {
	ChannelURL string
	Outcome    *ChannelOutcome
	Err        error
}

// BatchReport holds the result of one reconcile-and-run pass over all channels.
type BatchReport struct {
	RunID       string
	Created     []string
	Deactivated []string
	Reactivated []string
	Channels    []ChannelReport
	Duration    time.Duration
}

// Failed returns the number of channels whose run returned an error.
func (r *BatchReport) Failed() int {
	n := 0
	for _, c := range r.Channels {
		if c.Err != nil {
			n++
		}
	}
	return n
}
