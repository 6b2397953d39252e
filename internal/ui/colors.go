package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/filealchemy/internal/notifications"
)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	accent string
}

// DarkPalette is used when the dark_mode preference is on.
func DarkPalette() *Palette {
	return NewPalette("#7D56F4", "#04B575", "#FF5F87", "#FFA500", "#626262")
}

// LightPalette is used when the dark_mode preference is off.
func LightPalette() *Palette {
	return NewPalette("#4B2FBF", "#027A48", "#C0392B", "#B35900", "#4A4A4A")
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		accent: t,
	}
}

// notice picks the style for a notification type.
func (p *Palette) notice(kind notifications.Type) lipgloss.Style {
	switch kind {
	case notifications.Success:
		return p.ok
	case notifications.Error:
		return p.err
	case notifications.Warning:
		return p.warn
	default:
		return p.help
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
