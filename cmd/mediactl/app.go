package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"media-board/internal/artifacts"
	"media-board/internal/database"
	"media-board/internal/encoder"
	"media-board/internal/ffmpeg"
	"media-board/internal/logging"
	"media-board/internal/startup"
)

// Output formats accepted by --output.
const (
	outputAuto  = "auto"
	outputTable = "table"
	outputJSON  = "json"
)

// app is the state shared by every command. runner is replaced in tests.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	v      *viper.Viper
	cfg    *startup.Config
	runner ffmpeg.Runner
	format string
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

// flagBindings maps persistent flags to configuration keys, so a flag
// overrides the environment and the config file.
var flagBindings = map[string]string{
	"data-dir":     startup.KeyDataDir,
	"database-dir": startup.KeyDatabaseDir,
	"log-level":    startup.KeyLogLevel,
	"video-codec":  startup.KeyVideoCodec,
	"encoder":      startup.KeyVideoEncoder,
	"ffmpeg":       startup.KeyFFmpegPath,
	"ffprobe":      startup.KeyFFprobePath,
	"gifsicle":     startup.KeyGifsiclePath,
}

// load resolves the configuration once flags are parsed.
func (a *app) load(cmd *cobra.Command) error {
	v, err := startup.NewViper()
	if err != nil {
		return err
	}
	for name, key := range flagBindings {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}

	cfg, err := startup.Decode(v)
	if err != nil {
		return err
	}
	if !logging.IsDebugEnabled() {
		logging.SetLevel(cfg.LogLevel)
	}

	switch a.format {
	case outputAuto:
		a.format = outputJSON
		if a.isTerminal() {
			a.format = outputTable
		}
	case outputTable, outputJSON:
	default:
		return fmt.Errorf("unknown output format %q (want auto, table or json)", a.format)
	}

	a.v, a.cfg = v, cfg
	if a.runner == nil {
		a.runner = ffmpeg.NewExecRunner(cfg.ToolPaths())
	}
	return nil
}

func (a *app) isTerminal() bool {
	f, ok := a.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) stdinIsTerminal() bool {
	f, ok := a.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) layout() artifacts.Layout {
	return artifacts.NewLayout(a.cfg.DataDir)
}

func (a *app) registry() *encoder.Registry {
	return encoder.NewRegistry(a.runner, a.cfg.VideoEncoder)
}

func (a *app) openDB(ctx context.Context) (*database.Database, error) {
	if err := os.MkdirAll(a.cfg.DatabaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return database.New(ctx, a.cfg.DatabasePath)
}

// emit prints v as JSON, or calls table with a tabwriter.
func (a *app) emit(v interface{}, table func(w io.Writer)) error {
	if a.format == outputJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}
