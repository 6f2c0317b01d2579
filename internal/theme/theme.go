// Package theme holds the phosphor palette and styles shared by every screen
// the terminal prop draws.
package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	// Phosphor is the primary CRT green used for prompts and banners.
	Phosphor = "#33FF66"
	// DimPhosphor is the faded green used for secondary text.
	DimPhosphor = "#1F8F3F"
	// Amber is the caution color for lockout notices.
	Amber = "#FFB000"
	// AlertRed is the alarm color.
	AlertRed = "#FF3333"
	// Cyan marks informational notices and help entries.
	Cyan = "#33CCFF"
	// Ghost is the muted gray for empty bar cells.
	Ghost = "#4A4A4A"
	// Screen is the terminal background.
	Screen = "#000000"
)

const (
	// IconOK prefixes accepted steps.
	IconOK = "[+]"
	// IconFail prefixes rejected input.
	IconFail = "[-]"
	// IconWarn prefixes warnings.
	IconWarn = "[!]"
	// IconInfo prefixes neutral notices.
	IconInfo = "[*]"
)

var (
	// PhosphorColor is the profile-aware terminal color for Phosphor.
	PhosphorColor = profileColor(Phosphor, "83", "10")
	// DimPhosphorColor is the profile-aware terminal color for DimPhosphor.
	DimPhosphorColor = profileColor(DimPhosphor, "29", "2")
	// AmberColor is the profile-aware terminal color for Amber.
	AmberColor = profileColor(Amber, "214", "11")
	// AlertRedColor is the profile-aware terminal color for AlertRed.
	AlertRedColor = profileColor(AlertRed, "203", "9")
	// CyanColor is the profile-aware terminal color for Cyan.
	CyanColor = profileColor(Cyan, "45", "14")
	// GhostColor is the profile-aware terminal color for Ghost.
	GhostColor = profileColor(Ghost, "238", "8")
)

var (
	// PromptStyle renders the input prompt.
	PromptStyle = lipgloss.NewStyle().Foreground(PhosphorColor).Bold(true)
	// SuccessStyle renders accepted steps and the victory code.
	SuccessStyle = lipgloss.NewStyle().Foreground(PhosphorColor).Bold(true)
	// ErrorStyle renders rejected input.
	ErrorStyle = lipgloss.NewStyle().Foreground(AlertRedColor).Bold(true)
	// WarningStyle renders resets and lockout notices.
	WarningStyle = lipgloss.NewStyle().Foreground(AmberColor).Bold(true)
	// InfoStyle renders neutral notices.
	InfoStyle = lipgloss.NewStyle().Foreground(CyanColor)
	// MutedStyle renders descriptions and secondary text.
	MutedStyle = lipgloss.NewStyle().Foreground(DimPhosphorColor)
)

var (
	// BannerBorder frames the intro banner.
	BannerBorder = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(PhosphorColor).
			Foreground(PhosphorColor).
			Bold(true).
			Padding(0, 2)

	// AlarmBorder frames the alarm banner.
	AlarmBorder = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(AlertRedColor).
			Foreground(AlertRedColor).
			Bold(true).
			Padding(0, 2)

	// VictoryBorder frames the victory code.
	VictoryBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PhosphorColor).
			Foreground(PhosphorColor).
			Bold(true).
			Padding(1, 4)
)

var colorProfileFn = lipgloss.ColorProfile

func profileColor(hex string, ansi256 string, ansi string) lipgloss.TerminalColor {
	switch colorProfileFn() {
	case termenv.ANSI256, termenv.ANSI:
		complete := lipgloss.CompleteColor{
			TrueColor: hex,
			ANSI256:   ansi256,
			ANSI:      ansi,
		}
		return lipgloss.CompleteAdaptiveColor{Light: complete, Dark: complete}
	default:
		return lipgloss.AdaptiveColor{Light: hex, Dark: hex}
	}
}
