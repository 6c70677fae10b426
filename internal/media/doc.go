// Package media wraps the raster operations the upload pipeline needs:
// reading image dimensions, resizing to bounded-width WEBP, and normalizing
// stored originals (EXIF orientation applied, metadata stripped).
//
// libvips is used once InitVips has run. Before that, or when libvips
// rejects an input, the same operations fall back to imaging and go-webp.
package media
