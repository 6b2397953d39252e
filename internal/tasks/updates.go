package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase   // Operation phase
	Step    int     // Current step number within phase
	Total   int     // Total steps in this phase
	Percent float64 // Overall batch progress, 0-100
	Message string  // Human-readable message for display
	Data    any     // Optional phase-specific data for advanced UIs
}

// ProgressFunc receives batch progress percentages.
type ProgressFunc func(percent float64)

// Operation phase enumeration
type Phase int

const (
	Validate Phase = iota
	Convert
	Complete
	Download
)

func (p Phase) String() string {
	switch p {
	case Validate:
		return "validate"
	case Convert:
		return "convert"
	case Complete:
		return "complete"
	case Download:
		return "download"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
//
// A full channel drops the update so reporting never stalls the conversion.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func startedUpdate(files int, sel Selection) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Validate,
		Step:    0,
		Total:   files,
		Message: fmt.Sprintf("Converting %d %s from %s to %s...", files, plural(files, "file"), sel.SourceFormat, sel.TargetFormat),
	}
}

func convertingUpdate(percent float64, files int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Convert,
		Step:    int(percent / 100 * float64(files)),
		Total:   files,
		Percent: percent,
		Message: fmt.Sprintf("Converting... %.0f%%", percent),
	}
}

func completedUpdate(job Job, message string) ProgressUpdate {
	ok, _ := CountResults(job.Results)
	return ProgressUpdate{
		Phase:   Complete,
		Step:    ok,
		Total:   len(job.Results),
		Percent: 100,
		Message: message,
		Data:    job,
	}
}

func downloadStartedUpdate(total int, dir string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Total:   total,
		Message: fmt.Sprintf("Downloading %d %s to %s...", total, plural(total, "file"), dir),
	}
}

func downloadCompletedUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, name),
	}
}

func downloadFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
