package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// UI layout constants
const (
	defaultViewportHeight = 15
	viewportWidthMargin   = 4
	chromeHeight          = 9 // title + help + indicator + status + margins
	statusClearDelay      = 2 * time.Second
	errorClearDelay       = 4 * time.Second
	edgeThreshold         = 2 // 行；距边缘多少行算“贴边”
	dialogWidth           = 60
)

var (
	primaryColor = lipgloss.Color("#1E88E5")
	accentColor  = lipgloss.Color("#FFB300")
	mutedColor   = lipgloss.Color("#9E9E9E")
	successColor = lipgloss.Color("#43A047")
	errorColor   = lipgloss.Color("#E53935")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	helpStyle     = lipgloss.NewStyle().Foreground(mutedColor)
	statusStyle   = lipgloss.NewStyle().Foreground(primaryColor)
	successStyle  = lipgloss.NewStyle().Foreground(successColor)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(mutedColor)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	editingStyle  = lipgloss.NewStyle().Foreground(successColor)
	labelStyle    = lipgloss.NewStyle().Foreground(mutedColor).Width(12)
	valueStyle    = lipgloss.NewStyle().Bold(true)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2).BorderForeground(mutedColor)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 3).
			Width(dialogWidth).
			Align(lipgloss.Left)
	alertStyle = dialogStyle.BorderForeground(errorColor)
)
