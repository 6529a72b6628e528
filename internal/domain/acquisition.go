package domain

import "time"

type AcquisitionRecord struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	ChannelURL string    `db:"channel" json:"channel"`
	UploadDate string    `db:"upload_date" json:"upload_date"`
	OutputPath string    `db:"output_path" json:"output_path"`
	AcquiredAt time.Time `db:"acquired_at" json:"acquired_at"`
}

// TranscodeProfile is a named set of transcoder parameters producing one container.
type TranscodeProfile struct {
	Name        string
	Extension   string   // output file extension without dot
	Format      string   // muxer name passed to the transcoder
	Args        []string // codec arguments
	Passthrough bool     // stream copy; scale and frame rate are not applied
	Height      int      // target height, 0 keeps the source height
	FPS         int      // target frame rate, 0 keeps the source rate
}

type FetchRequest struct {
	URL      string
	FormatID string
	Dest     string
}

// FetchEvent is one element of the finite progress sequence a Fetcher emits.
// The last event of a failed fetch carries Err.
type FetchEvent struct {
	Percent float64
	Err     error
}

type TranscodeRequest struct {
	VideoPath  string
	AudioPath  string
	Args       []string
	Format     string
	OutputPath string
}
