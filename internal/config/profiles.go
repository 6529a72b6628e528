package config

// DefaultProfiles is the built-in preset table. Entries in the config file with the
// same name replace these.
func DefaultProfiles() map[string]ProfileConfig {
	return map[string]ProfileConfig{
		"h264-mp4": {
			Extension: "mp4",
			Format:    "mp4",
			Args: []string{
				"-c:v", "libx264",
				"-preset", "medium",
				"-crf", "23",
				"-c:a", "aac",
				"-b:a", "128k",
				"-movflags", "+faststart",
			},
		},
		"vp9-webm": {
			Extension: "webm",
			Format:    "webm",
			Args: []string{
				"-c:v", "libvpx-vp9",
				"-crf", "32",
				"-b:v", "0",
				"-c:a", "libopus",
				"-b:a", "96k",
			},
		},
		"copy-mkv": {
			Extension:   "mkv",
			Format:      "matroska",
			Args:        []string{"-c", "copy"},
			Passthrough: true,
		},
	}
}
