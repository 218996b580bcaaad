// Package binaries resolves the external executables the job server
// shells out to, each overridable by an environment variable so an
// operator can point at a non-PATH install without rebuilding.
package binaries

import "os"

func resolve(envKey, fallback string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return fallback
}

// FFmpeg returns the configured ffmpeg executable path.
func FFmpeg() string {
	return resolve("TSAPI_FFMPEG_BIN", "ffmpeg")
}

// FFprobe returns the configured ffprobe executable path.
func FFprobe() string {
	return resolve("TSAPI_FFPROBE_BIN", "ffprobe")
}
