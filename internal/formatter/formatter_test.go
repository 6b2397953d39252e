package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/shared"
	th "github.com/desertthunder/filealchemy/internal/testing"
)

func sampleHistory() []*models.HistoryEntry {
	a := models.NewHistoryEntry("images", "png", "jpg")
	a.SetID("entry-1")
	a.FileCount, a.SuccessCount, a.FailedCount = 3, 2, 1
	a.Engine, a.Message = models.EngineMock, "Converted 2 of 3 files (1 failed)"

	b := models.NewHistoryEntry("documents", "pdf", "docx")
	b.SetID("entry-2")
	b.FileCount, b.SuccessCount = 1, 1
	b.Engine, b.Message = models.EngineBackend, "Successfully converted 1 file"

	return []*models.HistoryEntry{a, b}
}

func TestExporters(t *testing.T) {
	entries := sampleHistory()

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(entries)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,Date,Category,Source,Target,Files,Succeeded,Failed,Engine,Message") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "entry-1") || !strings.Contains(output, "PNG,JPG,3,2,1,mock") {
			t.Errorf("CSV missing first entry, got: %s", output)
		}
		if lines := strings.Count(output, "\n"); lines != 3 {
			t.Errorf("expected 3 lines, got %d", lines)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(entries)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Conversion History") {
			t.Error("Markdown missing title")
		}
		if !strings.Contains(output, "| PDF → DOCX | 1 | 1 | 0 | backend |") {
			t.Errorf("Markdown missing second row, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown Empty", func(t *testing.T) {
		data, _ := ExportToMarkdown(nil)
		if !strings.Contains(string(data), "No conversions recorded") {
			t.Errorf("expected empty marker, got: %s", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(entries)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "PNG → JPG - 2/3 files (mock)") {
			t.Errorf("text missing first entry, got: %s", output)
		}
		if !strings.Contains(output, "   Successfully converted 1 file") {
			t.Errorf("text missing message line, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(entries)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var records []map[string]any
		if err := json.Unmarshal(data, &records); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(records) != 2 || records[0]["source_format"] != "PNG" || records[1]["engine"] != "backend" {
			t.Errorf("unexpected records %v", records)
		}
	})
}

func TestExport(t *testing.T) {
	t.Run("Extensions", func(t *testing.T) {
		tests := []struct{ format, ext string }{
			{"csv", ".csv"},
			{"Markdown", ".md"},
			{"md", ".md"},
			{"txt", ".txt"},
			{"", ".json"},
		}
		for _, tc := range tests {
			_, ext, err := Export(sampleHistory(), tc.format)
			if err != nil || ext != tc.ext {
				t.Errorf("Export(%q) = %q, %v; want %q", tc.format, ext, err, tc.ext)
			}
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, _, err := Export(nil, "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("WriteExport Appends Extension", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "nested", "history")

		path, err := WriteExport(sampleHistory(), "csv", base)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != base+".csv" {
			t.Errorf("expected %s.csv, got %s", base, path)
		}
		th.AssertFileExists(t, path)
		if !strings.Contains(th.MustReadFile(t, path), "entry-2") {
			t.Error("written export missing entry")
		}
	})

	t.Run("WriteJSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		if err := WriteJSON(map[string]int{"total": 2}, path); err != nil {
			t.Fatalf("WriteJSON failed: %v", err)
		}
		if !strings.Contains(th.MustReadFile(t, path), `"total": 2`) {
			t.Error("expected indented JSON")
		}
	})
}
