package domain

// ListingView is one enumeration tab of a channel.
type ListingView string

const (
	ViewShorts ListingView = "shorts"
	ViewVideos ListingView = "videos"
)

// DefaultViews is the view-priority order used when deduplicating across views.
var DefaultViews = []ListingView{ViewShorts, ViewVideos}

const (
	// ShortDurationLimit is exclusive: a short lasts strictly less than this many seconds.
	ShortDurationLimit = 181
)

type FormatDescriptor struct {
	FormatID  string
	HasVideo  bool
	HasAudio  bool
	Container string
	Width     int
	Height    int
	Language  string
}

func (f FormatDescriptor) VideoOnly() bool { return f.HasVideo && !f.HasAudio }

func (f FormatDescriptor) AudioOnly() bool { return f.HasAudio && !f.HasVideo }

// ListingEntry is one raw item produced by a Lister for a channel tab.
type ListingEntry struct {
	ID         string
	Title      string
	UploadDate string
	Duration   float64
	Width      int
	Height     int
	Formats    []FormatDescriptor
	WebpageURL string
	Channel    string
}

type VideoCandidate struct {
	ID              string
	Title           string
	UploadDate      string // YYYYMMDD, compared lexicographically
	DurationSeconds int
	Width           int
	Height          int
	Formats         []FormatDescriptor
	ChannelLabel    string
	ChannelURL      string
	WebpageURL      string
	View            ListingView
}

// IsShort reports whether the candidate is a vertical video shorter than ShortDurationLimit.
func (v VideoCandidate) IsShort() bool {
	return v.DurationSeconds < ShortDurationLimit && v.Width < v.Height
}

// ViewResult holds the candidates one listing view produced. Err is set when the
// view could not be listed; Candidates is empty in that case.
type ViewResult struct {
	View       ListingView
	Candidates []VideoCandidate
	Err        error
}

type MergeResult struct {
	Shorts     []VideoCandidate
	Normals    []VideoCandidate
	Unique     int // deduplicated candidates at or after the date floor
	NewestID   string
	NewestDate string
}

// Empty reports whether nothing newer than the cursor was found.
func (m MergeResult) Empty() bool {
	return m.NewestID == ""
}
