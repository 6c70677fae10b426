package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	"media-board/internal/logging"
	"media-board/internal/mediatypes"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when an original cannot be re-encoded in
// its own format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image.
// Formats the Go decoders do not know are read with libvips when available.
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err == nil {
		return &ImageDimensions{Width: config.Width, Height: config.Height}, nil
	}
	if !IsVipsAvailable() {
		return nil, err
	}

	ref, vipsErr := vips.NewImageFromFile(path)
	if vipsErr != nil {
		return nil, fmt.Errorf("reading dimensions of %s: %w", path, vipsErr)
	}
	defer ref.Close()
	return &ImageDimensions{Width: ref.Width(), Height: ref.Height()}, nil
}

// Resized is a WEBP encoding of a source image bounded to a maximum width.
type Resized struct {
	Data       []byte
	Width      int
	Height     int
	OrigWidth  int
	OrigHeight int
}

// ResizeToWebP auto-rotates src, shrinks it to at most maxWidth pixels wide
// (never enlarging it) and encodes it as lossy WEBP without metadata.
// Animated sources contribute their first frame.
func ResizeToWebP(src []byte, maxWidth, quality int) (*Resized, error) {
	if IsVipsAvailable() {
		r, err := resizeWithVips(src, maxWidth, quality)
		if err == nil {
			return r, nil
		}
		logging.Debug("libvips resize failed, using fallback: %v", err)
	}
	return resizeWithGo(src, maxWidth, quality)
}

func resizeWithVips(src []byte, maxWidth, quality int) (*Resized, error) {
	ref, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	origWidth, origHeight := ref.Width(), ref.Height()
	if origWidth > maxWidth {
		if err := ref.Resize(float64(maxWidth)/float64(origWidth), vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	params := vips.NewWebpExportParams()
	params.Quality = quality
	params.StripMetadata = true
	data, _, err := ref.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	return &Resized{
		Data:       data,
		Width:      ref.Width(),
		Height:     ref.Height(),
		OrigWidth:  origWidth,
		OrigHeight: origHeight,
	}, nil
}

func resizeWithGo(src []byte, maxWidth, quality int) (*Resized, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	origWidth, origHeight := img.Bounds().Dx(), img.Bounds().Dy()
	if origWidth > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	data, err := encodeWebP(img, quality)
	if err != nil {
		return nil, err
	}

	return &Resized{
		Data:       data,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		OrigWidth:  origWidth,
		OrigHeight: origHeight,
	}, nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return nil, fmt.Errorf("error creating webp encoder options: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("error encoding webp: %w", err)
	}
	return buf.Bytes(), nil
}

// Re-encode quality for normalized lossy originals.
const (
	normalizeJPEGQuality = 95
	normalizeWebPQuality = 90
)

// NormalizeOriginal applies the EXIF orientation to src and re-encodes it in
// its own format without metadata. ext selects the output format when libvips
// is not available.
func NormalizeOriginal(src []byte, ext string) ([]byte, error) {
	if IsVipsAvailable() {
		out, err := normalizeWithVips(src)
		if err == nil {
			return out, nil
		}
		logging.Debug("libvips normalize failed, using fallback: %v", err)
	}
	return normalizeWithGo(src, mediatypes.NormalizeExtension(ext))
}

func normalizeWithVips(src []byte) ([]byte, error) {
	ref, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	var out []byte
	switch ref.Format() {
	case vips.ImageTypeJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = normalizeJPEGQuality
		params.StripMetadata = true
		out, _, err = ref.ExportJpeg(params)
	case vips.ImageTypePNG:
		params := vips.NewPngExportParams()
		params.StripMetadata = true
		out, _, err = ref.ExportPng(params)
	case vips.ImageTypeWEBP:
		params := vips.NewWebpExportParams()
		params.Quality = normalizeWebPQuality
		params.StripMetadata = true
		out, _, err = ref.ExportWebp(params)
	case vips.ImageTypeTIFF:
		params := vips.NewTiffExportParams()
		params.StripMetadata = true
		out, _, err = ref.ExportTiff(params)
	default:
		return nil, fmt.Errorf("%w: vips type %v", ErrUnsupportedFormat, ref.Format())
	}
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}

func normalizeWithGo(src []byte, ext string) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if ext == "webp" {
		return encodeWebP(img, normalizeWebPQuality)
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(normalizeJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ext, err)
	}
	return buf.Bytes(), nil
}
