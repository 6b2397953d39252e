// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for file conversion:
//  1. [CategoryView] : Browse format categories
//  2. [SourceView] : Pick the format of the files
//  3. [TargetView] : Pick a format the source converts to
//  4. [ConfirmView] : Review the batch before converting
//  5. [ConvertView] : Monitor real-time progress
//  6. [ResultView] : Per-file results, with bulk download
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the orchestrator, providing non-blocking status reporting during conversions.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, d, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
