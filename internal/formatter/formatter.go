// package formatter provides functions to export conversion history to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// Supported export formats.
const (
	CSV      = "csv"
	Markdown = "markdown"
	Text     = "txt"
	JSON     = "json"
)

// Formats lists the accepted export format names.
var Formats = []string{CSV, Markdown, Text, JSON}

const timeLayout = "2006-01-02 15:04:05"

// historyRecord is the serialized form of a [models.HistoryEntry].
type historyRecord struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	SourceFormat string    `json:"source_format"`
	TargetFormat string    `json:"target_format"`
	FileCount    int       `json:"file_count"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	Engine       string    `json:"engine"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExportToCSV converts history entries to CSV with a header row.
func ExportToCSV(entries []*models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Date", "Category", "Source", "Target", "Files", "Succeeded", "Failed", "Engine", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.ID(),
			e.CreatedAt().Format(timeLayout),
			e.Category,
			e.SourceFormat,
			e.TargetFormat,
			strconv.Itoa(e.FileCount),
			strconv.Itoa(e.SuccessCount),
			strconv.Itoa(e.FailedCount),
			e.Engine,
			e.Message,
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

// ExportToMarkdown converts history entries to a Markdown table.
func ExportToMarkdown(entries []*models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Conversion History\n\n")
	buf.WriteString(fmt.Sprintf("**Entries**: %d\n\n", len(entries)))

	if len(entries) == 0 {
		buf.WriteString("_No conversions recorded._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Date | Conversion | Files | Succeeded | Failed | Engine |\n")
	buf.WriteString("|------|------------|-------|-----------|--------|--------|\n")
	for _, e := range entries {
		buf.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s |\n",
			e.CreatedAt().Format(timeLayout), e.Conversion(), e.FileCount, e.SuccessCount, e.FailedCount, e.Engine))
	}

	return buf.Bytes(), nil
}

// ExportToText converts history entries to a numbered plain text list.
func ExportToText(entries []*models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Conversion history: %d entries\n\n", len(entries)))
	for i, e := range entries {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s - %d/%d files (%s)\n",
			i+1, e.CreatedAt().Format(timeLayout), e.Conversion(), e.SuccessCount, e.FileCount, e.Engine))
		if e.Message != "" {
			buf.WriteString(fmt.Sprintf("   %s\n", e.Message))
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts history entries to an indented JSON array.
func ExportToJSON(entries []*models.HistoryEntry) ([]byte, error) {
	records := make([]historyRecord, len(entries))
	for i, e := range entries {
		records[i] = historyRecord{
			ID:           e.ID(),
			Category:     e.Category,
			SourceFormat: e.SourceFormat,
			TargetFormat: e.TargetFormat,
			FileCount:    e.FileCount,
			SuccessCount: e.SuccessCount,
			FailedCount:  e.FailedCount,
			Engine:       e.Engine,
			Message:      e.Message,
			CreatedAt:    e.CreatedAt(),
		}
	}
	return MarshalJSON(records)
}

// Export renders entries in the named format and returns the file extension to use.
func Export(entries []*models.HistoryEntry, format string) ([]byte, string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case CSV:
		data, err := ExportToCSV(entries)
		return data, ".csv", err
	case Markdown, "md":
		data, err := ExportToMarkdown(entries)
		return data, ".md", err
	case Text, "text":
		data, err := ExportToText(entries)
		return data, ".txt", err
	case JSON, "":
		data, err := ExportToJSON(entries)
		return data, ".json", err
	default:
		return nil, "", fmt.Errorf("%w: unsupported export format %q (use %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders entries and writes them to path, appending the format's extension when path has none.
func WriteExport(entries []*models.HistoryEntry, format, path string) (string, error) {
	data, ext, err := Export(entries, format)
	if err != nil {
		return "", err
	}

	if filepath.Ext(path) == "" {
		path += ext
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// MarshalJSON encodes v as indented JSON.
func MarshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(v any, path string) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
