package service

import (
	"strings"

	"shortsync/internal/domain"
)

// SelectFormats picks one video-only and one audio-only format. Formats are
// expected in the lister's quality order, worst first. The video stream with the
// largest frame wins; the audio stream is the last one matching language, or the
// last audio stream of any language when none matches.
func SelectFormats(formats []domain.FormatDescriptor, language string) (video, audio domain.FormatDescriptor, err error) {
	var (
		haveVideo     bool
		haveAudio     bool
		haveLangAudio bool
	)

	for _, f := range formats {
		switch {
		case f.VideoOnly():
			if !haveVideo || f.Width*f.Height >= video.Width*video.Height {
				video = f
				haveVideo = true
			}
		case f.AudioOnly():
			if language != "" && matchLanguage(f.Language, language) {
				audio = f
				haveAudio = true
				haveLangAudio = true
			} else if !haveLangAudio {
				audio = f
				haveAudio = true
			}
		}
	}

	if !haveVideo || !haveAudio {
		return domain.FormatDescriptor{}, domain.FormatDescriptor{}, ErrNoSuitableFormat
	}
	return video, audio, nil
}

// matchLanguage reports whether tag belongs to want, so "en" matches "en-US".
func matchLanguage(tag, want string) bool {
	tag = strings.ToLower(tag)
	want = strings.ToLower(want)
	return tag == want || strings.HasPrefix(tag, want+"-") || strings.HasPrefix(tag, want+"_")
}
