package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/joip/internal/formatter"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for multi-session media exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: joip_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 3)
	RateLimit  float64 // Sessions resolved per second (default: 1)
	Limit      int     // Per-channel listing size (default: DefaultSessionLimit)
}

type sessionExportJob struct {
	Session *models.Session
	Media   []string
}

// BulkExport resolves each session's media and writes it to disk with a worker pool.
//
// Sessions are resolved one at a time behind a limiter so a large export does not exhaust the
// upstream rate budget; writing is fanned out to workers. A session that yields no media is
// recorded as failed without stopping the others. A manifest is written to the output directory.
func (a *MediaAggregator) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	sessions []*models.Session,
	opts BulkExportOpts,
) (*formatter.BulkExportResult, error) {
	if a.fetcher == nil {
		return nil, fmt.Errorf("%w: media fetcher not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("joip_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(sessions)
	result := &formatter.BulkExportResult{
		TotalSessions:   total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.SessionExportResult, 0, total),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan sessionExportJob, total)
	results := make(chan formatter.SessionExportResult, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go a.exportWorker(ctx, &wg, jobs, results, opts)
	}

	var producer sync.WaitGroup
	producer.Add(1)
	go func() {
		defer producer.Done()
		defer close(jobs)

		for i, session := range sessions {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			a.sendProgress(prog, exportingSessionUpdate(i+1, total, session.Title))
			media, err := a.ResolveSession(ctx, session, opts.Limit, nil)
			if err != nil {
				results <- formatter.SessionExportResult{
					SessionID:    session.ID,
					SessionTitle: session.Title,
					Error:        fmt.Errorf("failed to resolve session: %w", err),
				}
				continue
			}

			jobs <- sessionExportJob{Session: session, Media: media}
		}
	}()

	go func() {
		producer.Wait()
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			a.sendProgress(prog, exportCompletedUpdate(completed, total, res.SessionTitle, res.MediaCount))
		} else {
			result.FailedExports++
			a.sendProgress(prog, exportFailedUpdate(completed, total, res.SessionTitle, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// exportWorker writes resolved sessions from the jobs channel until it is closed.
func (a *MediaAggregator) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan sessionExportJob,
	results chan<- formatter.SessionExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- formatter.SessionExportResult{
				SessionID:    job.Session.ID,
				SessionTitle: job.Session.Title,
				Error:        ctx.Err(),
			}
			continue
		}
		results <- a.exportSingleSession(job, opts)
	}
}

func (a *MediaAggregator) exportSingleSession(j sessionExportJob, opts BulkExportOpts) formatter.SessionExportResult {
	result := formatter.SessionExportResult{
		SessionID:    j.Session.ID,
		SessionTitle: j.Session.Title,
		MediaCount:   len(j.Media),
		Files:        []string{},
	}

	export := &formatter.MediaExport{Session: j.Session, Media: j.Media, GeneratedAt: time.Now().UTC()}
	files, err := formatter.WriteMediaExport(export, opts.Format, opts.OutputDir)
	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		a.logger.Warn("session export failed", "session", j.Session.ID, "error", err)
		return result
	}

	result.Files = files
	result.Success = true
	return result
}
