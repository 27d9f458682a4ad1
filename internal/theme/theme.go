package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/chronicle/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle frames one dashboard panel.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// FocusedPanelStyle frames the panel that receives keys.
var FocusedPanelStyle = PanelStyle.
	BorderForeground(ColorBlue)

// PanelTitleStyle is used for panel headings.
var PanelTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// SelectedItemStyle highlights the item under the cursor.
var SelectedItemStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// DimmedStyle renders completed or secondary items.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// OverdueStyle marks past-due dates.
var OverdueStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// PendingStyle marks items with an unconfirmed optimistic write.
var PendingStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Italic(true)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders the last operation error in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed)

// PriorityStyle returns a color-coded style for a reminder or suggestion
// priority.
func PriorityStyle(p model.Priority) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch p {
	case model.PriorityUrgent:
		return base.Foreground(ColorRed)
	case model.PriorityHigh:
		return base.Foreground(ColorOrange)
	case model.PriorityMedium:
		return base.Foreground(ColorYellow)
	case model.PriorityLow:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// GoalStatusStyle returns a color-coded style for a goal status.
func GoalStatusStyle(s model.GoalStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch s {
	case model.GoalCompleted:
		return base.Foreground(ColorGreen)
	case model.GoalInProgress:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// ModeStyle colours the storage mode badge: magenta for the hosted
// backend, gray for this device only.
func ModeStyle(remote bool) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if remote {
		return base.Foreground(ColorMagenta)
	}
	return base.Foreground(ColorGray)
}
