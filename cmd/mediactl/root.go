package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"media-board/internal/startup"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mediactl",
		Short: "Operate a media board data directory",
		Long: `mediactl runs the media board pipeline from the command line.

It reads the same configuration as the server: environment variables,
the optional CONFIG_FILE, and the flags below, which win over both.

Examples:
  mediactl encoders --video-codec h265
  mediactl classify clip.mov photo.HEIC
  mediactl process --id 42 ./clip.mp4
  mediactl purge 42 --thumbnails-only
  mediactl stats -o json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.String("data-dir", "", "artifact root (DATA_DIR)")
	flags.String("database-dir", "", "result store directory (DATABASE_DIR)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	flags.String("video-codec", "", "h264, h265, vp9 or av1 (VIDEO_CODEC)")
	flags.String("encoder", "", "force an encoder implementation (VIDEO_ENCODER)")
	flags.String("ffmpeg", "", "ffmpeg binary (FFMPEG_PATH)")
	flags.String("ffprobe", "", "ffprobe binary (FFPROBE_PATH)")
	flags.String("gifsicle", "", "gifsicle binary (GIFSICLE_PATH)")
	flags.StringVarP(&a.format, "output", "o", outputAuto, "auto, table or json")

	root.AddCommand(
		newEncodersCommand(a),
		newClassifyCommand(a),
		newProcessCommand(a),
		newPurgeCommand(a),
		newStatsCommand(a),
		newVersionCommand(a),
	)
	return root
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			info := startup.GetBuildInfo()
			return a.emit(info, func(w io.Writer) {
				fmt.Fprintf(w, "version\t%s\n", info.Version)
				fmt.Fprintf(w, "commit\t%s\n", info.Commit)
				fmt.Fprintf(w, "built\t%s\n", info.BuildTime)
				fmt.Fprintf(w, "go\t%s %s/%s\n", info.GoVersion, info.OS, info.Arch)
			})
		},
	}
}
