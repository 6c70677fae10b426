// Package ffmpeg runs the external media tools (ffmpeg, ffprobe, gifsicle)
// and holds the argument fragments shared by the preview, thumbnail and
// probe stages.
//
// All invocations go through the Runner interface. ExecRunner is the real
// implementation; ffmpegtest.Fake scripts responses in tests so call counts
// can be asserted without the binaries installed.
package ffmpeg
