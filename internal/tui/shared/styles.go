// Package shared holds the styles, progress rendering and event plumbing used by both the
// console reporter and the interactive view.
package shared

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Exported constants.
const (
	// DefaultPadding is the default padding for boxes
	DefaultPadding = 2
	// ProgressBarWidth is the default width of progress bars
	ProgressBarWidth = 40
	// TickIntervalMs is the interval for tick messages in milliseconds
	TickIntervalMs = 100
	// KeyCtrlC is the key binding for cancellation
	KeyCtrlC = "ctrl+c"

	StateCancelled = "cancelled"
	StateComplete  = "complete"
	StateError     = "error"
	StateRunning   = "running"
)

// ColorsDisabled reports whether output should be plain (NO_COLOR set or TERM=dumb).
func ColorsDisabled() bool {
	return colorsDisabled
}

func AccentColor() lipgloss.Color { return lipgloss.Color(accentColorCode) }

// BoxStyle returns the style for boxes with padding
func BoxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AccentColor()).
		Padding(1, DefaultPadding)
}

func DimColor() lipgloss.Color { return lipgloss.Color(dimColorCode) }

// DimStyle returns the style for dimmed text
func DimStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(DimColor())
}

func ErrorColor() lipgloss.Color { return lipgloss.Color(errorColorCode) }

// ErrorStyle returns the style for error messages
func ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(ErrorColor()).
		Bold(true)
}

func HighlightColor() lipgloss.Color { return lipgloss.Color(highlightColorCode) }

// LabelStyle returns the style for labels
func LabelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(HighlightColor()).
		Bold(true)
}

// PrimaryColor returns the primary color for the UI
func PrimaryColor() lipgloss.Color { return lipgloss.Color(primaryColorCode) }

// RenderBox renders content in a box with consistent styling
func RenderBox(content string) string {
	return render(BoxStyle(), content)
}

// RenderDim renders dimmed text with consistent styling
func RenderDim(text string) string {
	return render(DimStyle(), text)
}

// RenderError renders an error message with consistent styling
func RenderError(text string) string {
	return render(ErrorStyle(), text)
}

// RenderLabel renders a label with consistent styling
func RenderLabel(text string) string {
	return render(LabelStyle(), text)
}

// RenderSuccess renders a success message with consistent styling
func RenderSuccess(text string) string {
	return render(SuccessStyle(), text)
}

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return render(TitleStyle(), text)
}

// RenderWarning renders a warning message with consistent styling
func RenderWarning(text string) string {
	return render(WarningStyle(), text)
}

func SuccessColor() lipgloss.Color { return lipgloss.Color(successColorCode) }

// SuccessStyle returns the style for success messages
func SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(SuccessColor()).
		Bold(true)
}

// TitleStyle returns the style for titles
func TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor()).
		MarginBottom(1)
}

func WarningColor() lipgloss.Color { return lipgloss.Color(warningColorCode) }

// WarningStyle returns the style for warning messages
func WarningStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(WarningColor()).
		Bold(true)
}

// unexported constants.
const (
	accentColorCode    = "62"  // Blue
	dimColorCode       = "240" // Dark gray
	errorColorCode     = "196" // Red
	highlightColorCode = "86"  // Cyan
	primaryColorCode   = "205" // Pink/purple
	successColorCode   = "42"  // Green
	warningColorCode   = "226" // Yellow
)

//nolint:gochecknoglobals // Read once from the environment at startup
var colorsDisabled = os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"

func render(style lipgloss.Style, text string) string {
	if colorsDisabled {
		return text
	}

	return style.Render(text)
}
