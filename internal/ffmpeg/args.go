package ffmpeg

import "fmt"

// ColorspaceFilter tags frames as BT.709 so previews and extracted frames
// render with the same colors regardless of the source's metadata.
const ColorspaceFilter = "setparams=color_primaries=bt709:color_trc=bt709:colorspace=bt709"

// PreviewWidth is the target width of video previews.
const PreviewWidth = 1280

// QuietArgs are prepended to every ffmpeg invocation.
var QuietArgs = []string{"-hide_banner", "-nostdin", "-loglevel", "error"}

// PreviewFilter returns the default software filter chain for video previews.
func PreviewFilter() string {
	return fmt.Sprintf("%s,scale=%d:-2", ColorspaceFilter, PreviewWidth)
}

// FrameExtractArgs returns the arguments that write a single representative
// frame of src to dst as PNG.
func FrameExtractArgs(src, dst string) []string {
	args := append([]string{}, QuietArgs...)
	return append(args,
		"-y",
		"-i", src,
		"-vf", ColorspaceFilter,
		"-frames:v", "1",
		dst,
	)
}

// APNGToGIFArgs converts an animated PNG into a GIF that gifsicle can read.
func APNGToGIFArgs(src, dst string) []string {
	args := append([]string{}, QuietArgs...)
	return append(args,
		"-y",
		"-f", "apng",
		"-i", src,
		"-filter_complex", "split[a][b];[a]palettegen[p];[b][p]paletteuse",
		"-loop", "0",
		dst,
	)
}

// RoundDown rounds n down to a multiple of m, never below m.
func RoundDown(n, m int) int {
	if m <= 0 {
		return n
	}
	r := n - n%m
	if r < m {
		return m
	}
	return r
}
