package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/joip/internal/formatter"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
	"github.com/desertthunder/joip/internal/tasks"
	"github.com/urfave/cli/v3"
)

// MediaFetch aggregates a session's channels and prints or writes the shuffled media list.
func (r *Runner) MediaFetch(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireReddit(); err != nil {
		return err
	}

	session, err := r.sessionArg(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("fetching media", "session", session.ID, "channels", len(session.Channels))

	media, err := r.resolveWithProgress(ctx, session, r.limit(cmd), !cmd.Bool("quiet"))
	if err != nil {
		return err
	}

	export := &formatter.MediaExport{Session: session, Media: media, GeneratedAt: time.Now().UTC()}
	format := cmd.String("format")

	if dir := cmd.String("output"); dir != "" {
		files, err := formatter.WriteMediaExport(export, format, dir)
		if err != nil {
			return err
		}
		r.writePlain("✓ Wrote %d media URL(s)\n", len(media))
		for _, f := range files {
			r.writePlain("  %s\n", f)
		}
		return nil
	}

	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(export, true)
	case formatter.FormatCSV:
		data, err := formatter.MediaToCSV(export)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case formatter.FormatMarkdown, "md":
		return r.writePlain("%s", formatter.MediaToMarkdown(export, ""))
	case formatter.FormatText, "":
		return r.writePlain("%s", formatter.MediaToText(export))
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// MediaValidate checks whether each channel argument exists.
func (r *Runner) MediaValidate(ctx context.Context, cmd *cli.Command) error {
	if r.validator == nil {
		return fmt.Errorf("%w: Reddit client not initialized", shared.ErrServiceUnavailable)
	}

	channels := models.ParseChannels(strings.Join(cmd.Args().Slice(), ","))
	if len(channels) == 0 {
		return fmt.Errorf("%w: at least one channel", shared.ErrMissingArgument)
	}

	results := make(map[string]bool, len(channels))
	invalid := 0
	for _, ch := range channels {
		ok, err := r.validator.ValidateChannel(ctx, ch)
		if err != nil {
			return err
		}
		results[ch] = ok
		if !ok {
			invalid++
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(results, true); err != nil {
			return err
		}
	} else {
		for _, ch := range channels {
			if results[ch] {
				r.writePlain("✓ r/%s\n", ch)
			} else {
				r.writePlain("✗ r/%s\n", ch)
			}
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%w: %d of %d channel(s) not found", shared.ErrInvalidInput, invalid, len(channels))
	}
	return nil
}

// MediaExport resolves several sessions and writes each media list to disk with a manifest.
func (r *Runner) MediaExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireReddit(); err != nil {
		return err
	}

	sessions, err := r.selectSessions(cmd.Args().Slice())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return r.writePlain("No sessions to export.\n")
	}

	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		Limit:      r.limit(cmd),
	}

	r.logger.Info("starting bulk export", "sessions", len(sessions), "format", opts.Format)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := r.printProgress(progressCh)

	result, err := r.aggregator.BulkExport(ctx, progressCh, sessions, opts)
	close(progressCh)
	<-done

	if result != nil {
		r.writePlain("\n")
		r.writePlainHeader("Export Complete")
		r.writePlain("Output: %s\n", result.OutputDirectory)
		r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalSessions)
		if result.ManifestPath != "" {
			r.writePlain("Manifest: %s\n", result.ManifestPath)
		}
		if result.FailedExports > 0 {
			r.writePlain("\nFailed sessions:\n")
			for _, res := range result.Results {
				if !res.Success {
					r.writePlain("  - %s: %v\n", res.SessionTitle, res.Error)
				}
			}
		}
	}
	return err
}

// resolveWithProgress resolves session media, echoing aggregation progress when verbose is set.
func (r *Runner) resolveWithProgress(ctx context.Context, session *models.Session, limit int, verbose bool) ([]string, error) {
	if !verbose {
		return r.aggregator.ResolveSession(ctx, session, limit, nil)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := r.printProgress(progressCh)

	media, err := r.aggregator.ResolveSession(ctx, session, limit, progressCh)
	close(progressCh)
	<-done
	return media, err
}

// printProgress writes updates until ch is closed, then closes the returned channel.
func (r *Runner) printProgress(ch <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			switch update.Phase {
			case tasks.ResolveChannels, tasks.FetchChannel:
				r.logger.Info(update.Message)
			case tasks.ShuffleMedia:
				r.logger.Debug(update.Message)
			case tasks.ExportSession:
				r.writePlain("📦 %s\n", update.Message)
			}
		}
	}()
	return done
}

// limit returns the --limit flag, falling back to the configured default.
func (r *Runner) limit(cmd *cli.Command) int {
	if n := cmd.Int("limit"); n > 0 {
		return n
	}
	return r.config.Player.DefaultLimit
}
