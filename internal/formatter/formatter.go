// package formatter renders sessions and media lists to CSV, Markdown, plain text, JSON and YAML
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
)

// Supported output formats.
const (
	FormatText     = "txt"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// MediaExport is a resolved media list for a session.
type MediaExport struct {
	Session     *models.Session `json:"session"`
	Media       []string        `json:"media"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// SessionsToCSV renders sessions with columns: ID, Title, Channels, Interval, Transition, Favorite, Public, Updated
func SessionsToCSV(sessions []*models.Session) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Channels", "Interval", "Transition", "Favorite", "Public", "Updated"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range sessions {
		record := []string{
			s.ID,
			s.Title,
			strings.Join(s.Channels, ";"),
			strconv.Itoa(s.Interval),
			s.Transition.String(),
			strconv.FormatBool(s.IsFavorite),
			strconv.FormatBool(s.IsPublic),
			s.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// SessionsToMarkdown renders sessions as a Markdown table.
func SessionsToMarkdown(sessions []*models.Session) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Sessions\n\n")
	buf.WriteString("| Title | Channels | Interval | Transition | Favorite |\n")
	buf.WriteString("| ----- | -------- | -------- | ---------- | -------- |\n")
	for _, s := range sessions {
		fav := ""
		if s.IsFavorite {
			fav = "★"
		}
		fmt.Fprintf(&buf, "| %s | %s | %ds | %s | %s |\n",
			escapeCell(s.Title), escapeCell(channelList(s.Channels)), s.Interval, s.Transition, fav)
	}
	return buf.Bytes()
}

// SessionsToText renders sessions one per line.
func SessionsToText(sessions []*models.Session) []byte {
	var buf bytes.Buffer
	if len(sessions) == 0 {
		buf.WriteString("No sessions.\n")
		return buf.Bytes()
	}

	for i, s := range sessions {
		fav := " "
		if s.IsFavorite {
			fav = "*"
		}
		fmt.Fprintf(&buf, "%d. %s %s [%s] %ds %s (%s)\n", i+1, fav, s.Title, channelList(s.Channels), s.Interval, s.Transition, s.ID)
	}
	return buf.Bytes()
}

// SessionDetail renders one session as labelled lines. shareBase, when set, adds the share link for public sessions.
func SessionDetail(s *models.Session, shareBase string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Title:      %s\n", s.Title)
	fmt.Fprintf(&buf, "ID:         %s\n", s.ID)
	fmt.Fprintf(&buf, "Channels:   %s\n", channelList(s.Channels))
	fmt.Fprintf(&buf, "Interval:   %ds\n", s.Interval)
	fmt.Fprintf(&buf, "Transition: %s\n", s.Transition)
	fmt.Fprintf(&buf, "Favorite:   %s\n", yesNo(s.IsFavorite))
	fmt.Fprintf(&buf, "Public:     %s\n", yesNo(s.IsPublic))
	if s.CaptionPrompt != "" {
		fmt.Fprintf(&buf, "Prompt:     %s\n", s.CaptionPrompt)
	}
	if link := s.ShareURL(shareBase); link != "" {
		fmt.Fprintf(&buf, "Share:      %s\n", link)
	}
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(&buf, "Updated:    %s\n", s.UpdatedAt.Local().Format(time.DateTime))
	}
	return buf.Bytes()
}

// MediaToText renders a media list one URL per line.
func MediaToText(export *MediaExport) []byte {
	var buf bytes.Buffer
	if export.Session != nil {
		fmt.Fprintf(&buf, "Session: %s\n", export.Session.Title)
	}
	fmt.Fprintf(&buf, "Media: %d\n\n", len(export.Media))
	for i, u := range export.Media {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, u)
	}
	return buf.Bytes()
}

// MediaToCSV renders a media list with columns: Index, URL
func MediaToCSV(export *MediaExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"Index", "URL"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i, u := range export.Media {
		if err := writer.Write([]string{strconv.Itoa(i), u}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// MediaToMarkdown renders a media list as a Markdown gallery with an optional cover image.
func MediaToMarkdown(export *MediaExport, coverFilename string) []byte {
	var buf bytes.Buffer

	title := "Media"
	if export.Session != nil {
		title = export.Session.Title
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)

	if coverFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", coverFilename)
	}

	if export.Session != nil {
		fmt.Fprintf(&buf, "**Channels**: %s\n", channelList(export.Session.Channels))
		fmt.Fprintf(&buf, "**Interval**: %ds\n", export.Session.Interval)
		fmt.Fprintf(&buf, "**Transition**: %s\n", export.Session.Transition)
	}
	fmt.Fprintf(&buf, "**Items**: %d\n\n", len(export.Media))

	buf.WriteString("## Media\n\n")
	for i, u := range export.Media {
		fmt.Fprintf(&buf, "%d. ![%d](%s)\n", i+1, i+1, u)
	}
	return buf.Bytes()
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return imageData, nil
}

// WriteMediaExport writes export to dir in the given format and returns the files it created.
//
// Files are named after the session ID: {id}.json, {id}.csv, {id}.txt, or {id}/README.md for Markdown,
// which also tries to save the first media item as {id}/cover.jpg.
func WriteMediaExport(export *MediaExport, format, dir string) ([]string, error) {
	base := "media"
	if export.Session != nil && export.Session.ID != "" {
		base = export.Session.ID
	}

	switch format {
	case FormatCSV:
		data, err := MediaToCSV(export)
		if err != nil {
			return nil, err
		}
		return writeFile(filepath.Join(dir, base+".csv"), data)

	case FormatText:
		return writeFile(filepath.Join(dir, base+".txt"), MediaToText(export))

	case FormatMarkdown:
		outDir := filepath.Join(dir, base)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		var files []string
		cover := ""
		if len(export.Media) > 0 {
			if data, err := DownloadImage(export.Media[0]); err == nil {
				coverPath := filepath.Join(outDir, "cover.jpg")
				if err := os.WriteFile(coverPath, data, 0644); err == nil {
					cover = "cover.jpg"
					files = append(files, coverPath)
				}
			}
		}

		written, err := writeFile(filepath.Join(outDir, "README.md"), MediaToMarkdown(export, cover))
		if err != nil {
			return nil, err
		}
		return append(files, written...), nil

	default:
		data, err := shared.MarshalJSON(export, true)
		if err != nil {
			return nil, fmt.Errorf("JSON marshal failed: %w", err)
		}
		return writeFile(filepath.Join(dir, base+".json"), data)
	}
}

func writeFile(path string, data []byte) ([]string, error) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return []string{path}, nil
}

func channelList(channels []string) string {
	prefixed := make([]string, len(channels))
	for i, c := range channels {
		prefixed[i] = "r/" + c
	}
	return strings.Join(prefixed, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
