package mediatypes

import "strings"

// MediaClass is the processing class of an upload, derived from its extension.
type MediaClass string

const (
	// ClassImage is a still raster image.
	ClassImage MediaClass = "image"
	// ClassAnimated is an animated raster image (GIF, APNG).
	ClassAnimated MediaClass = "animated"
	// ClassVideo is a video container.
	ClassVideo MediaClass = "video"
	// ClassOther is anything the pipeline refuses to process.
	ClassOther MediaClass = "other"
)

// Classes lists the processable classes in artifact folder order.
var Classes = []MediaClass{ClassImage, ClassVideo, ClassAnimated}

// classByExtension is the fixed extension table. Keys are lowercase and
// carry no leading dot.
var classByExtension = map[string]MediaClass{
	"png":  ClassImage,
	"jpg":  ClassImage,
	"jpeg": ClassImage,
	"webp": ClassImage,
	"bmp":  ClassImage,
	"tiff": ClassImage,

	"gif":  ClassAnimated,
	"apng": ClassAnimated,

	"mp4":  ClassVideo,
	"webm": ClassVideo,
	"mov":  ClassVideo,
	"avi":  ClassVideo,
	"mkv":  ClassVideo,
}

// MimeTypes maps normalized extensions to their MIME types.
var MimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"gif":  "image/gif",
	"apng": "image/apng",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
}

// NormalizeExtension lowercases ext and strips a leading dot, so ".JPG",
// "JPG" and "jpg" all become "jpg".
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Resolve returns the MediaClass for an extension. It is total: anything not
// in the table yields ClassOther.
func Resolve(ext string) MediaClass {
	if class, ok := classByExtension[NormalizeExtension(ext)]; ok {
		return class
	}
	return ClassOther
}

// GetMimeType returns the MIME type for an extension, or
// "application/octet-stream" if it is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[NormalizeExtension(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsProcessable reports whether the pipeline accepts the class.
func (c MediaClass) IsProcessable() bool {
	return c == ClassImage || c == ClassAnimated || c == ClassVideo
}

// Extensions returns the extensions that resolve to the class, unordered.
func Extensions(class MediaClass) []string {
	var exts []string
	for ext, c := range classByExtension {
		if c == class {
			exts = append(exts, ext)
		}
	}
	return exts
}
