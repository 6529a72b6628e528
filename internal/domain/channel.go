package domain

import "time"

type Channel struct {
	URL           string     `db:"url"`
	LastSeenID    *string    `db:"last_seen_id"`
	LastSeenDate  *string    `db:"last_seen_date"` // YYYYMMDD of LastSeenID
	Active        bool       `db:"active"`
	CreatedAt     time.Time  `db:"created_at"`
	CursorMovedAt *time.Time `db:"cursor_moved_at"`
}

// Cursor returns the last seen item id, or "" when the channel has never been synced.
func (c Channel) Cursor() string {
	if c.LastSeenID == nil {
		return ""
	}
	return *c.LastSeenID
}

func (c Channel) CursorDate() string {
	if c.LastSeenDate == nil {
		return ""
	}
	return *c.LastSeenDate
}

// NormalsPolicy is the operator preference for videos that are not shorts.
type NormalsPolicy string

const (
	NormalsAsk  NormalsPolicy = "ask"
	NormalsSkip NormalsPolicy = "skip"
)

func (p NormalsPolicy) Valid() bool {
	return p == NormalsAsk || p == NormalsSkip
}

// SettingNormalsPolicy is the settings key holding a NormalsPolicy value.
const SettingNormalsPolicy = "normals_policy"
