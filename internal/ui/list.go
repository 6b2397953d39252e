package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/filealchemy/internal/catalog"
)

var (
	_ list.Item = categoryItem{}
	_ list.Item = formatItem{}
)

// categoryItem wraps a catalog category to implement [list.Item].
type categoryItem struct {
	name    string
	sources []string
}

func (i categoryItem) FilterValue() string { return i.name }
func (i categoryItem) Title() string       { return catalog.Title(i.name) }
func (i categoryItem) Description() string {
	return fmt.Sprintf("%d formats • %s", len(i.sources), strings.Join(i.sources, ", "))
}

// formatItem wraps a format and the formats it converts to, implementing [list.Item].
type formatItem struct {
	format  string
	targets []string
}

func (i formatItem) FilterValue() string { return i.format }
func (i formatItem) Title() string       { return i.format }
func (i formatItem) Description() string {
	if len(i.targets) == 0 {
		return ""
	}
	return "→ " + strings.Join(i.targets, ", ")
}

func categoryItems(c *catalog.Catalog) []list.Item {
	names := c.Categories()
	items := make([]list.Item, len(names))
	for i, name := range names {
		items[i] = categoryItem{name: name, sources: c.SourceFormats(name)}
	}
	return items
}

func sourceItems(c *catalog.Catalog, category string) []list.Item {
	sources := c.SourceFormats(category)
	items := make([]list.Item, len(sources))
	for i, source := range sources {
		items[i] = formatItem{format: source, targets: c.TargetFormats(source)}
	}
	return items
}

func targetItems(c *catalog.Catalog, source string) []list.Item {
	targets := c.TargetFormats(source)
	items := make([]list.Item, len(targets))
	for i, target := range targets {
		items[i] = formatItem{format: target}
	}
	return items
}
