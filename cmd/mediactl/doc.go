// Command mediactl operates a media board data directory without the server.
//
// Commands:
//
//   - encoders: probe ffmpeg and show the encoder selection for a codec family
//   - classify: show the media class of file names
//   - process: run the upload pipeline on a local file
//   - purge: delete the artifacts of a content id
//   - stats: summarize the result store and artifact folders
//   - version: print build information
//
// Configuration is shared with the server (environment, CONFIG_FILE) and
// can be overridden with flags. Output is a table on a terminal and JSON
// otherwise; -o forces either.
package main
