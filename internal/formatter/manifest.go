package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/joip/internal/shared"
)

// SessionExportResult is the outcome of exporting one session's media.
type SessionExportResult struct {
	SessionID    string
	SessionTitle string
	MediaCount   int
	Success      bool
	Files        []string
	Error        error
}

// BulkExportResult summarizes a multi-session media export.
type BulkExportResult struct {
	TotalSessions     int
	SuccessfulExports int
	FailedExports     int
	Results           []SessionExportResult
	OutputDirectory   string
	ManifestPath      string
}

type manifestEntry struct {
	SessionID  string   `json:"session_id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	MediaCount int      `json:"media_count"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type manifest struct {
	GeneratedAt       time.Time       `json:"generated_at"`
	Format            string          `json:"format"`
	OutputDirectory   string          `json:"output_directory"`
	TotalSessions     int             `json:"total_sessions"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Sessions          []manifestEntry `json:"sessions"`
}

// WriteBulkExportManifest writes a JSON summary of result to path.
func WriteBulkExportManifest(result *BulkExportResult, format, path string) error {
	m := manifest{
		GeneratedAt:       time.Now().UTC(),
		Format:            format,
		OutputDirectory:   result.OutputDirectory,
		TotalSessions:     result.TotalSessions,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
		Sessions:          make([]manifestEntry, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		entry := manifestEntry{
			SessionID:  r.SessionID,
			Title:      r.SessionTitle,
			Status:     "success",
			MediaCount: r.MediaCount,
			Files:      r.Files,
		}
		if !r.Success {
			entry.Status = "failed"
			if r.Error != nil {
				entry.Error = r.Error.Error()
			}
		}
		m.Sessions = append(m.Sessions, entry)
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
