package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortsync/internal/domain"
)

func TestSelectFormats(t *testing.T) {
	v360 := domain.FormatDescriptor{FormatID: "134", HasVideo: true, Container: "mp4", Width: 360, Height: 640}
	v1080 := domain.FormatDescriptor{FormatID: "137", HasVideo: true, Container: "mp4", Width: 1080, Height: 1920}
	v1080webm := domain.FormatDescriptor{FormatID: "248", HasVideo: true, Container: "webm", Width: 1080, Height: 1920}
	muxed := domain.FormatDescriptor{FormatID: "18", HasVideo: true, HasAudio: true, Container: "mp4", Width: 2160, Height: 3840}
	aEn := domain.FormatDescriptor{FormatID: "140-en", HasAudio: true, Container: "m4a", Language: "en-US"}
	aDe := domain.FormatDescriptor{FormatID: "140-de", HasAudio: true, Container: "m4a", Language: "de"}
	aNone := domain.FormatDescriptor{FormatID: "251", HasAudio: true, Container: "webm"}

	tests := []struct {
		name      string
		formats   []domain.FormatDescriptor
		language  string
		wantVideo string
		wantAudio string
		wantErr   bool
	}{
		{
			name:      "largest video and last audio",
			formats:   []domain.FormatDescriptor{v360, aNone, v1080, aDe, muxed},
			wantVideo: "137",
			wantAudio: "140-de",
		},
		{
			name:      "later format wins equal size",
			formats:   []domain.FormatDescriptor{v1080, v1080webm, aNone},
			wantVideo: "248",
			wantAudio: "251",
		},
		{
			name:      "preferred language",
			formats:   []domain.FormatDescriptor{v1080, aEn, aDe, aNone},
			language:  "en",
			wantVideo: "137",
			wantAudio: "140-en",
		},
		{
			name:      "language is case insensitive",
			formats:   []domain.FormatDescriptor{v1080, aEn, aDe},
			language:  "EN-us",
			wantVideo: "137",
			wantAudio: "140-en",
		},
		{
			name:      "fallback to any language",
			formats:   []domain.FormatDescriptor{v1080, aDe, aNone},
			language:  "fr",
			wantVideo: "137",
			wantAudio: "251",
		},
		{
			name:    "muxed only",
			formats: []domain.FormatDescriptor{muxed},
			wantErr: true,
		},
		{
			name:    "no audio",
			formats: []domain.FormatDescriptor{v360, v1080},
			wantErr: true,
		},
		{
			name:    "no formats",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, audio, err := SelectFormats(tt.formats, tt.language)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoSuitableFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVideo, video.FormatID)
			assert.Equal(t, tt.wantAudio, audio.FormatID)
		})
	}
}
