package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/hyprshell/internal/session"
)

// Palette holds the colors every style is derived from.
type Palette struct {
	Accent   lipgloss.Color
	Focus    lipgloss.Color
	Success  lipgloss.Color
	Error    lipgloss.Color
	Warning  lipgloss.Color
	Info     lipgloss.Color
	Text     lipgloss.Color
	Subtext  lipgloss.Color
	Overlay  lipgloss.Color
	Surface1 lipgloss.Color
	Surface0 lipgloss.Color
	Base     lipgloss.Color
	Mantle   lipgloss.Color
}

// Catppuccin Mocha, https://catppuccin.com/palette
var darkPalette = Palette{
	Accent:   "#f5c2e7",
	Focus:    "#b4befe",
	Success:  "#a6e3a1",
	Error:    "#f38ba8",
	Warning:  "#f9e2af",
	Info:     "#94e2d5",
	Text:     "#cdd6f4",
	Subtext:  "#a6adc8",
	Overlay:  "#7f849c",
	Surface1: "#45475a",
	Surface0: "#313244",
	Base:     "#1e1e2e",
	Mantle:   "#181825",
}

// PaletteFor picks the palette for theme. The light theme is the dark palette
// with every color inverted. System leaves the palette untouched.
func PaletteFor(theme session.Theme) Palette {
	if theme == session.ThemeLight {
		return darkPalette.Inverted()
	}
	return darkPalette
}

// Inverted returns p with every color inverted.
func (p Palette) Inverted() Palette {
	return Palette{
		Accent:   invertColor(p.Accent),
		Focus:    invertColor(p.Focus),
		Success:  invertColor(p.Success),
		Error:    invertColor(p.Error),
		Warning:  invertColor(p.Warning),
		Info:     invertColor(p.Info),
		Text:     invertColor(p.Text),
		Subtext:  invertColor(p.Subtext),
		Overlay:  invertColor(p.Overlay),
		Surface1: invertColor(p.Surface1),
		Surface0: invertColor(p.Surface0),
		Base:     invertColor(p.Base),
		Mantle:   invertColor(p.Mantle),
	}
}

// invertColor maps #rrggbb to #(ff-rr)(ff-gg)(ff-bb). Other forms are returned
// unchanged.
func invertColor(c lipgloss.Color) lipgloss.Color {
	s := strings.TrimPrefix(string(c), "#")
	if len(s) != 6 {
		return c
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return c
	}
	return lipgloss.Color(fmt.Sprintf("#%06x", 0xffffff^v))
}

type styles struct {
	palette Palette

	tabBar      lipgloss.Style
	activeTab   lipgloss.Style
	inactiveTab lipgloss.Style
	newTab      lipgloss.Style

	address      lipgloss.Style
	addressLabel lipgloss.Style
	badgeOn      lipgloss.Style
	badgeOff     lipgloss.Style

	sidebar       lipgloss.Style
	sidebarItem   lipgloss.Style
	sidebarActive lipgloss.Style

	title   lipgloss.Style
	text    lipgloss.Style
	muted   lipgloss.Style
	cursor  lipgloss.Style
	errText lipgloss.Style

	status  lipgloss.Style
	footer  lipgloss.Style
	helpKey lipgloss.Style
	helpDsc lipgloss.Style
}

func newStyles(p Palette) styles {
	return styles{
		palette: p,

		tabBar:      lipgloss.NewStyle().Background(p.Mantle),
		activeTab:   lipgloss.NewStyle().Foreground(p.Accent).Background(p.Surface0).Bold(true),
		inactiveTab: lipgloss.NewStyle().Foreground(p.Overlay).Background(p.Mantle),
		newTab:      lipgloss.NewStyle().Foreground(p.Success).Background(p.Mantle).Bold(true),

		address:      lipgloss.NewStyle().Foreground(p.Text).Background(p.Surface0),
		addressLabel: lipgloss.NewStyle().Foreground(p.Subtext).Background(p.Surface0),
		badgeOn:      lipgloss.NewStyle().Foreground(p.Success).Background(p.Surface0).Bold(true),
		badgeOff:     lipgloss.NewStyle().Foreground(p.Overlay).Background(p.Surface0),

		sidebar:       lipgloss.NewStyle().Background(p.Mantle).Padding(0, 1),
		sidebarItem:   lipgloss.NewStyle().Foreground(p.Subtext).Background(p.Mantle),
		sidebarActive: lipgloss.NewStyle().Foreground(p.Accent).Background(p.Mantle).Bold(true),

		title:   lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		text:    lipgloss.NewStyle().Foreground(p.Text),
		muted:   lipgloss.NewStyle().Foreground(p.Subtext),
		cursor:  lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		errText: lipgloss.NewStyle().Foreground(p.Error),

		status:  lipgloss.NewStyle().Foreground(p.Subtext).Background(p.Surface0).Padding(0, 1),
		footer:  lipgloss.NewStyle().Foreground(p.Subtext).Background(p.Mantle).Padding(0, 1),
		helpKey: lipgloss.NewStyle().Foreground(p.Accent).Background(p.Mantle).Bold(true),
		helpDsc: lipgloss.NewStyle().Foreground(p.Subtext).Background(p.Mantle),
	}
}
