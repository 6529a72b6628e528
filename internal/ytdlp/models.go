package ytdlp

import (
	"strings"

	"shortsync/internal/domain"
)

// playlist is the document `yt-dlp -J` prints for a channel tab.
type playlist struct {
	Type    string   `json:"_type"`
	Entries []*entry `json:"entries"`
}

type entry struct {
	Type       string   `json:"_type"`
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	UploadDate string   `json:"upload_date"`
	Duration   float64  `json:"duration"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	WebpageURL string   `json:"webpage_url"`
	Channel    string   `json:"channel"`
	Uploader   string   `json:"uploader"`
	Formats    []format `json:"formats"`
}

type format struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	VCodec   string `json:"vcodec"`
	ACodec   string `json:"acodec"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Language string `json:"language"`
}

func hasCodec(codec string) bool {
	return codec != "" && !strings.EqualFold(codec, "none")
}

func (f format) toDomain() domain.FormatDescriptor {
	return domain.FormatDescriptor{
		FormatID:  f.FormatID,
		HasVideo:  hasCodec(f.VCodec),
		HasAudio:  hasCodec(f.ACodec),
		Container: f.Ext,
		Width:     f.Width,
		Height:    f.Height,
		Language:  f.Language,
	}
}

func (e *entry) toDomain() domain.ListingEntry {
	channel := e.Channel
	if channel == "" {
		channel = e.Uploader
	}

	formats := make([]domain.FormatDescriptor, 0, len(e.Formats))
	for _, f := range e.Formats {
		formats = append(formats, f.toDomain())
	}

	return domain.ListingEntry{
		ID:         e.ID,
		Title:      e.Title,
		UploadDate: e.UploadDate,
		Duration:   e.Duration,
		Width:      e.Width,
		Height:     e.Height,
		Formats:    formats,
		WebpageURL: e.WebpageURL,
		Channel:    channel,
	}
}
