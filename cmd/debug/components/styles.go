package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/VoidMesh/voxelstore/internal/chunk"
)

// Color definitions
var (
	// Primary colors
	PrimaryColor   = lipgloss.Color("#7D56F4")
	SecondaryColor = lipgloss.Color("#04B575")
	AccentColor    = lipgloss.Color("#FFD700")

	// Grayscale
	LightGray = lipgloss.Color("#D9D9D9")
	Gray      = lipgloss.Color("#8B8B8B")
	DarkGray  = lipgloss.Color("#383838")

	// Block colors
	StoneColor = lipgloss.Color("#696969") // DimGray
	DirtColor  = lipgloss.Color("#8B5A2B")
	GrassColor = lipgloss.Color("#3CB043")
	SandColor  = lipgloss.Color("#E2CA76")
	WaterColor = lipgloss.Color("#1E90FF") // DodgerBlue
	WoodColor  = lipgloss.Color("#8B4513") // SaddleBrown

	// Cache state colors
	NewColor       = lipgloss.Color("#00FF00") // Lime
	ChangedColor   = lipgloss.Color("#FFA500") // Orange
	UnchangedColor = lipgloss.Color("#FFFFFF")
)

// Base styles
var (
	// Title styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Align(lipgloss.Center).
			Padding(1, 2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true).
			Padding(0, 1)

	// Border styles
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Gray).
			Padding(1)

	// Menu styles
	MenuItemStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Padding(0, 2)

	SelectedMenuItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(PrimaryColor).
				Bold(true).
				Padding(0, 2)

	// Info panel styles
	InfoPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor).
			Padding(1).
			Width(36)

	// Status bar style
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(DarkGray).
			Padding(0, 1)

	// Help styles
	HelpStyle = lipgloss.NewStyle().
			Foreground(Gray).
			Italic(true).
			Padding(1)

	// Grid styles (for column and layer visualization)
	GridCellStyle = lipgloss.NewStyle().
			Width(2).
			Height(1).
			Align(lipgloss.Center)

	GridSelectedCellStyle = lipgloss.NewStyle().
				Width(2).
				Height(1).
				Align(lipgloss.Center).
				Background(PrimaryColor).
				Foreground(lipgloss.Color("#FAFAFA"))
)

// Grid symbols
const (
	StoredSymbol  = "[]" // Column has stored chunks
	MissingSymbol = "  " // Column was never generated
	CursorSymbol  = "><" // Cursor indicator
	AirSymbol     = "  "
)

// GetBlockSymbol returns the two-cell symbol for a block type
func GetBlockSymbol(t chunk.ItemType) string {
	switch t {
	case chunk.Air:
		return AirSymbol
	case chunk.Stone:
		return "##"
	case chunk.Dirt:
		return "::"
	case chunk.Grass:
		return "\"\""
	case chunk.Sand:
		return ".."
	case chunk.Water:
		return "~~"
	case chunk.Wood:
		return "||"
	}
	return "??"
}

// GetBlockColor returns the color a block type is drawn with
func GetBlockColor(t chunk.ItemType) lipgloss.Color {
	switch t {
	case chunk.Stone:
		return StoneColor
	case chunk.Dirt:
		return DirtColor
	case chunk.Grass:
		return GrassColor
	case chunk.Sand:
		return SandColor
	case chunk.Water:
		return WaterColor
	case chunk.Wood:
		return WoodColor
	}
	return Gray
}

// GetStateColor returns the color for a cache state name
func GetStateColor(state string) lipgloss.Color {
	switch state {
	case "new":
		return NewColor
	case "changed":
		return ChangedColor
	}
	return UnchangedColor
}
