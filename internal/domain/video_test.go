package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoCandidate_IsShort(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		width    int
		height   int
		want     bool
	}{
		{"vertical under limit", 180, 50, 100, true},
		{"vertical at limit", 181, 50, 100, false},
		{"square", 30, 100, 100, false},
		{"landscape", 30, 1920, 1080, false},
		{"zero length vertical", 0, 720, 1280, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := VideoCandidate{DurationSeconds: tt.duration, Width: tt.width, Height: tt.height}
			assert.Equal(t, tt.want, c.IsShort())
		})
	}
}

func TestFormatDescriptor_StreamKind(t *testing.T) {
	assert.True(t, FormatDescriptor{HasVideo: true}.VideoOnly())
	assert.False(t, FormatDescriptor{HasVideo: true, HasAudio: true}.VideoOnly())
	assert.True(t, FormatDescriptor{HasAudio: true}.AudioOnly())
	assert.False(t, FormatDescriptor{HasVideo: true, HasAudio: true}.AudioOnly())
}

func TestChannel_Cursor(t *testing.T) {
	id, date := "abc", "20250101"

	assert.Empty(t, Channel{}.Cursor())
	assert.Empty(t, Channel{}.CursorDate())
	assert.Equal(t, "abc", Channel{LastSeenID: &id}.Cursor())
	assert.Equal(t, "20250101", Channel{LastSeenDate: &date}.CursorDate())
}

func TestNormalsPolicy_Valid(t *testing.T) {
	assert.True(t, NormalsAsk.Valid())
	assert.True(t, NormalsSkip.Valid())
	assert.False(t, NormalsPolicy("maybe").Valid())
	assert.False(t, NormalsPolicy("").Valid())
}
