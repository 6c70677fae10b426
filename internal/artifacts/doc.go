// Package artifacts owns the on-disk layout of stored originals, previews and
// thumbnails, and removes every artifact of a content id on replace or delete.
//
// There is no index: a file's presence under its id-derived name is the only
// record that the artifact exists, so Purge scans every artifact folder.
package artifacts
