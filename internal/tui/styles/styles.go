package styles

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Accent    = lipgloss.Color("#E8A0BF")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	White     = lipgloss.Color("#F9FAFB")
	Green     = lipgloss.Color("#10B981")
	Red       = lipgloss.Color("#EF4444")
	Amber     = lipgloss.Color("#F59E0B")
)

// SpinnerFrames for loading animation
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Accent)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	PendingStyle = lipgloss.NewStyle().
			Foreground(Amber)

	SyncedStyle = lipgloss.NewStyle().
			Foreground(Green)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(lipgloss.Color("#374151")).
			Bold(true)

	FavoriteStyle = lipgloss.NewStyle().
			Foreground(Accent)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1)
)

// ProjectColorStyle maps a project accent color name to a style.
func ProjectColorStyle(color string) lipgloss.Style {
	hex := map[string]string{
		"blush":  "#E8A0BF",
		"sky":    "#7DD3FC",
		"lime":   "#BEF264",
		"amber":  "#FCD34D",
		"rose":   "#FDA4AF",
		"indigo": "#A5B4FC",
	}
	if h, ok := hex[color]; ok {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(h))
	}
	return lipgloss.NewStyle().Foreground(LightGray)
}
