package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"shortsync/internal/domain"
)

type ChannelStore interface {
	List(ctx context.Context) ([]domain.Channel, error)
	Create(ctx context.Context, url string) error
	SetActive(ctx context.Context, url string, active bool) error
	UpdateCursor(ctx context.Context, url, id, uploadDate string) error
}

type AcquisitionStore interface {
	Save(ctx context.Context, record *domain.AcquisitionRecord) error
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
}

type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Lister turns a channel tab URL into raw listing entries, newest first.
type Lister interface {
	List(ctx context.Context, tabURL string, maxItems int) ([]domain.ListingEntry, error)
}

// Fetcher downloads one format of a media URL to req.Dest. The returned channel
// yields progress in [0,100] and is closed when the fetch ends; a failed fetch
// sends a final event with Err set.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) <-chan domain.FetchEvent
}

type Transcoder interface {
	Transcode(ctx context.Context, req domain.TranscodeRequest) error
}

// Chooser picks which normal videos of a channel should be acquired.
type Chooser interface {
	Choose(ctx context.Context, channelURL string, candidates []domain.VideoCandidate) ([]domain.VideoCandidate, error)
}

type Publisher interface {
	Publish(ctx context.Context, record *domain.AcquisitionRecord) error
	Close() error
}

// Acquirer downloads and transcodes one candidate.
type Acquirer interface {
	Acquire(ctx context.Context, candidate domain.VideoCandidate, profile domain.TranscodeProfile) (*domain.AcquisitionRecord, error)
}

// ChannelSyncer runs the discovery and acquisition pipeline for one channel.
type ChannelSyncer interface {
	Run(ctx context.Context, channel domain.Channel) (*domain.ChannelOutcome, error)
}
