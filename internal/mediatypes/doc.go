// Package mediatypes classifies uploads into media classes.
//
// It is dependency-free so every other package can import it without cycles.
//
// Resolve maps an extension (with or without the leading dot, any case) to
// one of four classes:
//
//	mediatypes.ClassImage    // png, jpg, jpeg, webp, bmp, tiff
//	mediatypes.ClassAnimated // gif, apng
//	mediatypes.ClassVideo    // mp4, webm, mov, avi, mkv
//	mediatypes.ClassOther    // everything else; the pipeline refuses it
//
// Example:
//
//	class := mediatypes.Resolve(filepath.Ext(name))
//	if !class.IsProcessable() {
//	    return ErrInvalidInput
//	}
package mediatypes
