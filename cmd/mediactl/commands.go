package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"media-board/internal/artifacts"
	"media-board/internal/database"
	"media-board/internal/encoder"
	"media-board/internal/logging"
	"media-board/internal/media"
	"media-board/internal/mediatypes"
	"media-board/internal/metrics"
	"media-board/internal/pipeline"
	"media-board/internal/preview"
	"media-board/internal/probe"
	"media-board/internal/thumbnail"
)

// =============================================================================
// encoders
// =============================================================================

type candidateStatus struct {
	Name     string `json:"name"`
	Hardware bool   `json:"hardware"`
	Compiled bool   `json:"compiled"`
	Selected bool   `json:"selected"`
}

type encodersReport struct {
	Family     encoder.Family    `json:"family"`
	Override   string            `json:"override,omitempty"`
	HWAccels   []string          `json:"hwaccels"`
	Candidates []candidateStatus `json:"candidates"`
	Selected   string            `json:"selected,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func newEncodersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encoders",
		Short: "Probe ffmpeg and show which encoder previews would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.encoders(cmd.Context(), a.cfg.VideoFamily)
			if err != nil {
				return err
			}
			return a.emit(report, func(w io.Writer) {
				fmt.Fprintf(w, "FAMILY\t%s\n", report.Family)
				fmt.Fprintf(w, "HWACCELS\t%s\n", strings.Join(report.HWAccels, ", "))
				fmt.Fprintln(w)
				fmt.Fprintln(w, "ENCODER\tKIND\tCOMPILED\tSELECTED")
				for _, c := range report.Candidates {
					kind := "software"
					if c.Hardware {
						kind = "hardware"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, kind, yesNo(c.Compiled), mark(c.Selected))
				}
				if report.Error != "" {
					fmt.Fprintf(w, "\nno usable encoder: %s\n", report.Error)
				}
			})
		},
	}
}

// encoders fails only when the toolchain cannot be queried at all. A family
// with no usable encoder is reported, not returned as an error.
func (a *app) encoders(ctx context.Context, family encoder.Family) (*encodersReport, error) {
	reg := a.registry()

	compiled, err := reg.AvailableEncoders(ctx)
	if err != nil {
		return nil, err
	}
	hw, err := reg.AvailableHWAccels(ctx)
	if err != nil {
		return nil, err
	}

	report := &encodersReport{Family: family, Override: reg.Override(), HWAccels: hw.Sorted()}
	selected, selErr := reg.SelectEncoder(ctx, family)
	if selErr != nil {
		report.Error = selErr.Error()
	} else {
		report.Selected = selected.Name
	}

	for _, c := range encoder.PriorityList(family) {
		report.Candidates = append(report.Candidates, candidateStatus{
			Name:     c.Name,
			Hardware: c.IsHardware(),
			Compiled: compiled.Has(c.Name),
			Selected: selErr == nil && c.Name == selected.Name,
		})
	}
	return report, nil
}

// =============================================================================
// classify
// =============================================================================

type classification struct {
	File  string                `json:"file"`
	Ext   string                `json:"ext"`
	Class mediatypes.MediaClass `json:"class"`
	MIME  string                `json:"mime"`
}

func newClassifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify FILE...",
		Short: "Show the media class each file name resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			out := make([]classification, 0, len(args))
			for _, name := range args {
				ext := mediatypes.NormalizeExtension(filepath.Ext(name))
				out = append(out, classification{
					File:  name,
					Ext:   ext,
					Class: mediatypes.Resolve(ext),
					MIME:  mediatypes.GetMimeType(ext),
				})
			}
			return a.emit(out, func(w io.Writer) {
				fmt.Fprintln(w, "FILE\tCLASS\tMIME")
				for _, c := range out {
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.File, c.Class, c.MIME)
				}
			})
		},
	}
}

// =============================================================================
// process
// =============================================================================

func newProcessCommand(a *app) *cobra.Command {
	var (
		id      string
		replace bool
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Run the upload pipeline on a local file",
		Long: `Run the upload pipeline on a local file and store the artifacts under
the data directory. The result is saved to the result store unless
--no-store is given. With --replace, existing artifacts of the id are
removed first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.process(cmd.Context(), args[0], id, replace, !noStore)
			if err != nil {
				return err
			}
			return a.emit(res, func(w io.Writer) {
				fmt.Fprintf(w, "id\t%s\n", res.ContentID)
				fmt.Fprintf(w, "class\t%s\n", res.Class)
				fmt.Fprintf(w, "size\t%d\n", res.FileSize)
				fmt.Fprintf(w, "preview\t%s (%d bytes)\n", orDash(res.PreviewExt), res.PreviewFileSize)
				if res.PreviewScale != nil {
					fmt.Fprintf(w, "scale\t%d%%\n", *res.PreviewScale)
				}
				fmt.Fprintf(w, "aspect\t%g\n", res.AspectRatio)
				if res.Duration != nil {
					fmt.Fprintf(w, "duration\t%.3fs\n", *res.Duration)
				}
				if res.HasAudio != nil {
					fmt.Fprintf(w, "audio\t%s\n", yesNo(*res.HasAudio))
				}
				fmt.Fprintf(w, "thumbnails\t%s\n", yesNo(res.ThumbnailsReady))
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "content id (default: file name without extension)")
	cmd.Flags().BoolVar(&replace, "replace", false, "remove existing artifacts of the id first")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not write the result store")
	return cmd
}

func (a *app) process(ctx context.Context, path, id string, replace, store bool) (*pipeline.Result, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), ext)
	}

	// libvips is released at process exit.
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using the pure Go image path: %v", err)
	}

	layout := a.layout()
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	prober := probe.New(a.runner)
	orch := pipeline.New(
		artifacts.NewManager(layout),
		preview.New(a.runner, a.registry(), prober, layout, a.cfg.PreviewOptions()),
		thumbnail.New(a.runner, layout),
		prober,
	)

	run := orch.Upload
	if replace {
		run = orch.Replace
	}
	res, err := run(ctx, id, buf, ext)
	if errors.Is(err, pipeline.ErrExists) {
		return nil, fmt.Errorf("%w; pass --replace to overwrite it", err)
	}
	if err != nil {
		return nil, err
	}

	if store {
		db, err := a.openDB(ctx)
		if err != nil {
			return res, fmt.Errorf("artifacts written but the result store is unavailable: %w", err)
		}
		defer db.Close()
		if err := db.SaveMedia(ctx, res.Record()); err != nil {
			return res, fmt.Errorf("artifacts written but saving the result failed: %w", err)
		}
		if err := db.SetLastUpload(ctx, time.Now()); err != nil {
			logging.Warn("Failed to record last upload time: %v", err)
		}
	}
	return res, nil
}

// =============================================================================
// purge
// =============================================================================

type purgeReport struct {
	ContentID      string   `json:"contentId"`
	ThumbnailsOnly bool     `json:"thumbnailsOnly"`
	Deleted        []string `json:"deleted"`
	Failed         []string `json:"failed,omitempty"`
	RecordUpdated  bool     `json:"recordUpdated"`
}

var errAborted = errors.New("aborted")

func newPurgeCommand(a *app) *cobra.Command {
	var (
		thumbnailsOnly bool
		yes            bool
	)
	cmd := &cobra.Command{
		Use:   "purge ID",
		Short: "Delete the artifacts of a content id",
		Long: `Delete every artifact of a content id and its result store record.
With --thumbnails-only, only the three thumbnails are removed and the
record is marked as having no thumbnails.

On a terminal the command asks for confirmation unless --yes is given.
Without a terminal, --yes is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if !yes {
				if err := a.confirm(fmt.Sprintf("Delete %s of %q?", scopeName(thumbnailsOnly), id)); err != nil {
					return err
				}
			}
			report := a.purge(cmd.Context(), id, thumbnailsOnly)
			return a.emit(report, func(w io.Writer) {
				for _, p := range report.Deleted {
					fmt.Fprintf(w, "deleted\t%s\n", p)
				}
				for _, p := range report.Failed {
					fmt.Fprintf(w, "failed\t%s\n", p)
				}
				fmt.Fprintf(w, "record updated\t%s\n", yesNo(report.RecordUpdated))
			})
		},
	}
	cmd.Flags().BoolVar(&thumbnailsOnly, "thumbnails-only", false, "only remove thumbnails")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) confirm(question string) error {
	if !a.stdinIsTerminal() {
		return errors.New("refusing to purge without a terminal; pass --yes")
	}
	fmt.Fprintf(a.errOut, "%s [y/N] ", question)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

// purge removes files first and then updates the record. A result store
// that cannot be opened is logged; the files are gone either way.
func (a *app) purge(ctx context.Context, id string, thumbnailsOnly bool) purgeReport {
	report := purgeReport{ContentID: id, ThumbnailsOnly: thumbnailsOnly, Deleted: []string{}}
	for _, at := range artifacts.NewManager(a.layout()).Purge(id, thumbnailsOnly) {
		if at.Err == nil {
			report.Deleted = append(report.Deleted, at.Path)
		} else {
			report.Failed = append(report.Failed, at.Path)
		}
	}

	db, err := a.openDB(ctx)
	if err != nil {
		logging.Warn("Result store unavailable, record of %s left as is: %v", id, err)
		return report
	}
	defer db.Close()

	if !thumbnailsOnly {
		if report.RecordUpdated, err = db.DeleteMedia(ctx, id); err != nil {
			logging.Warn("Failed to delete record of %s: %v", id, err)
		}
		return report
	}

	rec, err := db.GetMedia(ctx, id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Warn("Failed to read record of %s: %v", id, err)
		}
		return report
	}
	rec.ThumbnailsReady = false
	if err := db.SaveMedia(ctx, rec); err != nil {
		logging.Warn("Failed to update record of %s: %v", id, err)
		return report
	}
	report.RecordUpdated = true
	return report
}

// =============================================================================
// stats
// =============================================================================

type statsReport struct {
	Store   database.Stats        `json:"store"`
	Folders []metrics.FolderStats `json:"folders"`
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the result store and artifact folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			report := statsReport{Store: stats, Folders: a.layout().FolderStats()}

			return a.emit(report, func(w io.Writer) {
				fmt.Fprintf(w, "records\t%d\n", stats.Total)
				for _, class := range mediatypes.Classes {
					fmt.Fprintf(w, "  %s\t%d\n", class, stats.ByClass[string(class)])
				}
				if !stats.LastUpload.IsZero() {
					fmt.Fprintf(w, "last upload\t%s\n", stats.LastUpload.Local().Format("2006-01-02 15:04:05"))
				}
				fmt.Fprintln(w)
				fmt.Fprintln(w, "FOLDER\tFILES\tBYTES")
				for _, f := range report.Folders {
					fmt.Fprintf(w, "%s\t%d\t%d\n", f.Folder, f.Files, f.Bytes)
				}
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func scopeName(thumbnailsOnly bool) string {
	if thumbnailsOnly {
		return "the thumbnails"
	}
	return "every artifact"
}
