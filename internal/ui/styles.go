// Package ui provides terminal styling for firma CLI output: the status
// palette, step lines, table rendering and the pager.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Status is the outcome shown in front of a report line.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
	StatusSkip
	StatusInfo
)

// Status icons
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// Tree prefixes for nested lines. TreeLast also prefixes a detail line under a status line.
const (
	TreeChild = "├─ "
	TreeLast  = "└─ "
)

// SeparatorLight is the rule printed between report sections.
const SeparatorLight = "──────────────────────────────────────────"

func (s Status) style() lipgloss.Style {
	switch s {
	case StatusPass:
		return PassStyle
	case StatusWarn:
		return WarnStyle
	case StatusFail:
		return FailStyle
	case StatusInfo:
		return AccentStyle
	default:
		return MutedStyle
	}
}

// Icon returns the styled icon for s.
func (s Status) Icon() string {
	icon := IconSkip
	switch s {
	case StatusPass:
		icon = IconPass
	case StatusWarn:
		icon = IconWarn
	case StatusFail:
		icon = IconFail
	case StatusInfo:
		icon = IconInfo
	}
	return s.style().Render(icon)
}

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderCategory renders a section header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderLine renders "<icon> title" with an optional muted detail line below.
func RenderLine(s Status, title, detail string) string {
	line := s.Icon() + " " + title
	if detail != "" {
		line += "\n  " + MutedStyle.Render(TreeLast+detail)
	}
	return line
}
