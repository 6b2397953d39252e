package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/filealchemy/internal/notifications"
	"github.com/desertthunder/filealchemy/internal/tasks"
	"github.com/dustin/go-humanize"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CategoryView ViewState = iota
	SourceView
	TargetView
	ConfirmView
	ConvertView
	ResultView
)

// Options configures a [Model].
type Options struct {
	Updates   <-chan tasks.ProgressUpdate // the orchestrator's progress channel
	Notices   *notifications.Sink
	OutputDir string
	DarkMode  bool
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	orch         *tasks.Orchestrator
	updates      <-chan tasks.ProgressUpdate
	done         <-chan error
	notices      *notifications.Sink
	outputDir    string
	styles       *Palette
	view         ViewState
	width        int
	height       int
	categoryList list.Model
	sourceList   list.Model
	targetList   list.Model
	bar          progress.Model
	progress     tasks.ProgressUpdate
	summary      *tasks.DownloadSummary
	downloading  bool
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI over orch. A selection already made on orch skips the matching views.
func NewModel(ctx context.Context, orch *tasks.Orchestrator, opts Options) *Model {
	styles := LightPalette()
	if opts.DarkMode {
		styles = DarkPalette()
	}

	m := &Model{
		ctx:       ctx,
		orch:      orch,
		updates:   opts.Updates,
		notices:   opts.Notices,
		outputDir: opts.OutputDir,
		styles:    styles,
		bar:       progress.New(progress.WithSolidFill(styles.accent), progress.WithWidth(40)),
		help:      help.New(),
		keys:      newKeyMap(),
		width:     80,
		height:    24,
	}

	m.categoryList = m.newList(categoryItems(orch.Catalog()), "Categories")

	sel := orch.Selection()
	switch {
	case sel.Ready():
		m.buildSources(sel.Category)
		m.buildTargets(sel.SourceFormat)
		m.view = ConfirmView
	case sel.SourceFormat != "":
		m.buildSources(sel.Category)
		m.buildTargets(sel.SourceFormat)
		m.view = TargetView
	case sel.Category != "":
		m.buildSources(sel.Category)
		m.view = SourceView
	}
	return m
}

// ViewState returns the current view.
func (m *Model) ViewState() ViewState {
	return m.view
}

// Init initializes the TUI.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.categoryList, &m.sourceList, &m.targetList} {
			l.SetSize(max(msg.Width-4, 0), max(msg.Height-8, 0))
		}
		m.bar.Width = max(min(msg.Width-8, 60), 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CategoryView:
			return m.handleCategoryKeys(msg)
		case SourceView:
			return m.handleSourceKeys(msg)
		case TargetView:
			return m.handleTargetKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ConvertView:
			return m.handleConvertKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case progress.FrameMsg:
		model, cmd := m.bar.Update(msg)
		if bar, ok := model.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		cmd := m.bar.SetPercent(m.progress.Percent / 100)
		return m, tea.Batch(cmd, m.waitForProgress())

	case MsgConversionComplete:
		m.done = nil
		m.drain()
		err, _ := msg.data.(error)
		if errors.Is(err, tasks.ErrCancelled) {
			m.view = CategoryView
			return m, nil
		}
		m.err = err
		m.view = ResultView
		return m, m.bar.SetPercent(1)

	case MsgDownloadComplete:
		res := msg.data.(downloadResult)
		m.downloading = false
		m.summary = res.summary
		m.err = res.err
		m.drain()
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case CategoryView:
		body = m.renderList(m.categoryList, m.keys.enter, m.keys.quit)
	case SourceView:
		body = m.renderList(m.sourceList, m.keys.enter, m.keys.back, m.keys.quit)
	case TargetView:
		body = m.renderList(m.targetList, m.keys.enter, m.keys.back, m.keys.quit)
	case ConfirmView:
		body = m.renderConfirm()
	case ConvertView:
		body = m.renderConvert()
	case ResultView:
		body = m.renderResult()
	}

	if notice := m.renderNotice(); notice != "" {
		body += "\n\n" + notice
	}
	return body
}

func (m *Model) handleCategoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if item, ok := m.categoryList.SelectedItem().(categoryItem); ok {
			if err := m.orch.SetConversion(item.name, "", ""); err != nil {
				m.err = err
				return m, nil
			}
			m.buildSources(item.name)
			m.view = SourceView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.categoryList, cmd = m.categoryList.Update(msg)
	return m, cmd
}

func (m *Model) handleSourceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = CategoryView
		return m, nil
	case "enter":
		if item, ok := m.sourceList.SelectedItem().(formatItem); ok {
			if err := m.orch.SetConversion(m.orch.Selection().Category, item.format, ""); err != nil {
				m.err = err
				return m, nil
			}
			m.buildTargets(item.format)
			m.view = TargetView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.sourceList, cmd = m.sourceList.Update(msg)
	return m, cmd
}

func (m *Model) handleTargetKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = SourceView
		return m, nil
	case "enter":
		if item, ok := m.targetList.SelectedItem().(formatItem); ok {
			sel := m.orch.Selection()
			if err := m.orch.SetConversion(sel.Category, sel.SourceFormat, item.format); err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.targetList, cmd = m.targetList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "n", "esc":
		m.view = TargetView
		return m, nil
	case "y":
		return m, m.startConversion()
	}
	return m, nil
}

func (m *Model) handleConvertKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.orch.Reset()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "d":
		if m.downloading || len(m.orch.Results()) == 0 {
			return m, nil
		}
		m.downloading = true
		return m, m.downloadAll()
	case "r":
		if err := m.orch.SetConversion("", "", ""); err != nil {
			m.err = err
			return m, nil
		}
		m.progress = tasks.ProgressUpdate{}
		m.summary = nil
		m.err = nil
		m.view = CategoryView
		return m, m.bar.SetPercent(0)
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case CategoryView:
		m.categoryList, cmd = m.categoryList.Update(msg)
	case SourceView:
		m.sourceList, cmd = m.sourceList.Update(msg)
	case TargetView:
		m.targetList, cmd = m.targetList.Update(msg)
	}
	return m, cmd
}

// startConversion validates synchronously and starts the batch in the background.
//
// Validation failures keep the confirm view; the orchestrator's notification explains them.
func (m *Model) startConversion() tea.Cmd {
	m.drain()
	done, err := m.orch.Start(m.ctx)
	if err != nil {
		m.err = err
		return nil
	}

	m.err = nil
	m.done = done
	m.progress = tasks.ProgressUpdate{}
	m.view = ConvertView
	return tea.Batch(m.bar.SetPercent(0), m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	return func() tea.Msg {
		if done == nil {
			return nil
		}
		select {
		case update := <-updates:
			return progressUpdateMsg(update)
		case err := <-done:
			return conversionCompleteMsg(err)
		}
	}
}

func (m *Model) downloadAll() tea.Cmd {
	return func() tea.Msg {
		summary, err := m.orch.DownloadAll(m.ctx, m.outputDir)
		return downloadCompleteMsg(summary, err)
	}
}

// drain discards buffered updates left over from a previous run.
func (m *Model) drain() {
	if m.updates == nil {
		return
	}
	for {
		select {
		case <-m.updates:
		default:
			return
		}
	}
}

func (m *Model) newList(items []list.Item, title string) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-8, 0))
	l.Title = title
	return l
}

func (m *Model) buildSources(category string) {
	m.sourceList = m.newList(sourceItems(m.orch.Catalog(), category), fmt.Sprintf("%s: convert from", categoryTitle(category)))
}

func (m *Model) buildTargets(source string) {
	m.targetList = m.newList(targetItems(m.orch.Catalog(), source), fmt.Sprintf("Convert %s to", source))
}

func categoryTitle(name string) string {
	if name == "" {
		return "Formats"
	}
	return categoryItem{name: name}.Title()
}

func (m *Model) renderList(l list.Model, keys ...key.Binding) string {
	return fmt.Sprintf("%s\n\n%s", l.View(), m.help.ShortHelpView(keys))
}

func (m *Model) renderConfirm() string {
	sel := m.orch.Selection()
	files := m.orch.Files()

	title := m.styles.title.Render(fmt.Sprintf("Convert %d %s from %s to %s?", len(files), plural(len(files), "file"), sel.SourceFormat, sel.TargetFormat))

	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "  • %s (%s)\n", f.Name, humanize.Bytes(uint64(f.Size)))
	}
	if len(files) == 0 {
		b.WriteString(m.styles.warn.Render("  No files selected. Pass files on the command line.") + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + m.styles.err.Render(m.err.Error()) + "\n")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderConvert() string {
	sel := m.orch.Selection()
	title := m.styles.title.Render(fmt.Sprintf("Converting %s → %s", sel.SourceFormat, sel.TargetFormat))

	message := m.progress.Message
	if message == "" {
		message = "Starting..."
	}
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.bar.View(), m.styles.help.Render(message))
}

func (m *Model) renderResult() string {
	job, ok := m.orch.Job()
	if !ok {
		return m.styles.err.Render("No result available\n\nPress r to start over, q to quit")
	}

	results := job.Results
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	var title string
	switch {
	case m.err != nil:
		title = m.styles.err.Render(fmt.Sprintf("✗ Conversion failed: %v", m.err))
	case succeeded == 0:
		title = m.styles.err.Render("✗ Conversion failed")
	case succeeded < len(results):
		title = m.styles.warn.Render(fmt.Sprintf("Converted %d of %d files", succeeded, len(results)))
	default:
		title = m.styles.ok.Render("✓ Conversion complete!")
	}

	var b strings.Builder
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "\n  %s %s → %s (%s)", m.styles.ok.Render("✓"), r.OriginalFile.Name, r.ConvertedFileName, humanize.Bytes(uint64(r.Size)))
		} else {
			fmt.Fprintf(&b, "\n  %s %s: %s", m.styles.err.Render("✗"), r.OriginalFile.Name, r.Error)
		}
	}
	if job.Engine != "" {
		fmt.Fprintf(&b, "\n\n%s", m.styles.help.Render("engine: "+job.Engine))
	}

	switch {
	case m.downloading:
		fmt.Fprintf(&b, "\n\nDownloading to %s...", m.outputDir)
	case m.summary != nil:
		fmt.Fprintf(&b, "\n\n%s", m.styles.ok.Render(fmt.Sprintf("Saved %d of %d files to %s", m.summary.Succeeded, m.summary.Total, m.summary.Directory)))
	}

	keys := []key.Binding{m.keys.restart, m.keys.quit}
	if succeeded > 0 {
		keys = append([]key.Binding{m.keys.download}, keys...)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", title, b.String(), m.help.ShortHelpView(keys))
}

func (m *Model) renderNotice() string {
	if m.notices == nil {
		return ""
	}
	active := m.notices.Active()
	if len(active) == 0 {
		return ""
	}

	n := active[len(active)-1]
	text := n.Title
	if n.Message != "" {
		text += ": " + n.Message
	}
	return m.styles.notice(n.Type).Render(text)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
