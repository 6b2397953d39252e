package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/filealchemy/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgConversionComplete
	MsgDownloadComplete
)

type downloadResult struct {
	summary *tasks.DownloadSummary
	err     error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// conversionCompleteMsg is the constructor for [MsgConversionComplete]
func conversionCompleteMsg(err error) Msg {
	return Msg{kind: MsgConversionComplete, data: err}
}

// downloadCompleteMsg is the constructor for [MsgDownloadComplete]
func downloadCompleteMsg(summary *tasks.DownloadSummary, err error) Msg {
	return Msg{kind: MsgDownloadComplete, data: downloadResult{summary, err}}
}
