package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/VoidMesh/voxelstore/cmd/debug/components"
	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
)

// gridRadius is how many columns are shown on each side of the center.
const gridRadius = 8

// ColumnExplorerModel shows which columns around a center exist in the store
// and lists the chunks of the column under the cursor.
type ColumnExplorerModel struct {
	store   *db.Store
	manager *world.Manager

	// Current state, in column units
	centerX int32
	centerZ int32
	cursorX int32
	cursorZ int32
	width   int
	height  int

	// Data
	present     map[[2]int32]bool
	column      []columnChunk
	isLoading   bool
	lastUpdated time.Time
	errorMsg    string

	// UI state
	autoRefresh bool
	showInfo    bool
}

type columnChunk struct {
	coord  chunk.Coord
	state  string
	nonAir int
}

// NewColumnExplorerModel creates a new column explorer model
func NewColumnExplorerModel(store *db.Store, manager *world.Manager) ColumnExplorerModel {
	return ColumnExplorerModel{
		store:       store,
		manager:     manager,
		present:     make(map[[2]int32]bool),
		isLoading:   true,
		autoRefresh: true,
		showInfo:    true,
	}
}

// Init initializes the column explorer
func (m ColumnExplorerModel) Init() tea.Cmd {
	return tea.Batch(
		m.loadGridCmd(),
		m.loadColumnCmd(),
		m.tickCmd(),
	)
}

// Reset forgets the loaded column when leaving the screen
func (m *ColumnExplorerModel) Reset() {
	m.column = nil
	m.errorMsg = ""
}

// Update handles column explorer messages
func (m ColumnExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		// Cursor movement within the grid
		case "up", "k":
			if m.cursorZ > -gridRadius {
				m.cursorZ--
				return m, m.loadColumnCmd()
			}
		case "down", "j":
			if m.cursorZ < gridRadius {
				m.cursorZ++
				return m, m.loadColumnCmd()
			}
		case "left", "h":
			if m.cursorX > -gridRadius {
				m.cursorX--
				return m, m.loadColumnCmd()
			}
		case "right", "l":
			if m.cursorX < gridRadius {
				m.cursorX++
				return m, m.loadColumnCmd()
			}

		// Grid navigation
		case "shift+up", "K":
			m.centerZ -= gridRadius
			return m, m.loadGridCmd()
		case "shift+down", "J":
			m.centerZ += gridRadius
			return m, m.loadGridCmd()
		case "shift+left", "H":
			m.centerX -= gridRadius
			return m, m.loadGridCmd()
		case "shift+right", "L":
			m.centerX += gridRadius
			return m, m.loadGridCmd()

		// Actions
		case "r":
			return m, tea.Batch(m.loadGridCmd(), m.loadColumnCmd())

		case "a":
			m.autoRefresh = !m.autoRefresh
			if m.autoRefresh {
				return m, m.tickCmd()
			}

		case "i":
			m.showInfo = !m.showInfo

		case "enter", " ":
			// Inspect the ground chunk of the selected column
			origin := m.cursorOrigin()
			return m, func() tea.Msg {
				return InspectChunkMsg{Coord: origin}
			}
		}

	case gridLoadedMsg:
		if msg.centerX == m.centerX && msg.centerZ == m.centerZ {
			m.present = msg.present
			m.isLoading = false
			m.lastUpdated = time.Now()
			m.errorMsg = ""
		}

	case columnLoadedMsg:
		if msg.origin == m.cursorOrigin() {
			m.column = msg.chunks
		}

	case explorerErrorMsg:
		m.isLoading = false
		m.errorMsg = string(msg)

	case tickMsg:
		if m.autoRefresh {
			return m, tea.Batch(
				m.loadGridCmd(),
				m.tickCmd(),
			)
		}
	}

	return m, nil
}

// cursorOrigin returns the ground chunk of the column under the cursor.
func (m ColumnExplorerModel) cursorOrigin() chunk.Coord {
	return chunk.Coord{
		X: (m.centerX + m.cursorX) * chunk.Size,
		Y: 0,
		Z: (m.centerZ + m.cursorZ) * chunk.Size,
	}
}

// View renders the column explorer
func (m ColumnExplorerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	// Title
	title := components.TitleStyle.Render(fmt.Sprintf("Column Explorer - %s", m.store.Location()))
	s.WriteString(title + "\n")

	// Main content area
	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderGrid(),
		m.renderInfoPanel(),
	)
	s.WriteString(mainContent + "\n")

	// Status bar
	s.WriteString(m.renderStatusBar())

	return s.String()
}

// renderGrid renders the column grid
func (m ColumnExplorerModel) renderGrid() string {
	if m.isLoading && len(m.present) == 0 {
		return components.BorderStyle.Render("Loading columns...")
	}

	var gridRows []string
	for dz := int32(-gridRadius); dz <= gridRadius; dz++ {
		var row []string
		for dx := int32(-gridRadius); dx <= gridRadius; dx++ {
			x := (m.centerX + dx) * chunk.Size
			z := (m.centerZ + dz) * chunk.Size

			cellContent := components.MissingSymbol
			cellStyle := components.GridCellStyle.Foreground(components.Gray)
			if m.present[[2]int32{x, z}] {
				cellContent = components.StoredSymbol
				cellStyle = components.GridCellStyle.Foreground(components.SecondaryColor)
			}
			if x == 0 && z == 0 {
				cellStyle = cellStyle.Foreground(components.AccentColor).Bold(true)
			}

			// Highlight cursor position
			if dx == m.cursorX && dz == m.cursorZ {
				cellStyle = components.GridSelectedCellStyle
				if cellContent == components.MissingSymbol {
					cellContent = components.CursorSymbol
				}
			}

			row = append(row, cellStyle.Render(cellContent))
		}
		gridRows = append(gridRows, strings.Join(row, ""))
	}

	return components.BorderStyle.
		Width((2*gridRadius+1)*2 + 2).
		Height(2*gridRadius + 1 + 2).
		Render(strings.Join(gridRows, "\n"))
}

// renderInfoPanel renders the information panel
func (m ColumnExplorerModel) renderInfoPanel() string {
	if !m.showInfo {
		return ""
	}

	var info strings.Builder
	origin := m.cursorOrigin()

	info.WriteString(components.SubtitleStyle.Render("Column") + "\n")
	info.WriteString(fmt.Sprintf("Origin: (%d, %d)\n", origin.X, origin.Z))
	info.WriteString(fmt.Sprintf("Stored: %v\n\n", m.present[[2]int32{origin.X, origin.Z}]))

	info.WriteString(components.SubtitleStyle.Render("Chunks") + "\n")
	if len(m.column) == 0 {
		info.WriteString("No chunks in this column\n")
	}
	for _, c := range m.column {
		state := lipgloss.NewStyle().Foreground(components.GetStateColor(c.state)).Render(c.state)
		info.WriteString(fmt.Sprintf("y=%-4d %5d blocks %s\n", c.coord.Y, c.nonAir, state))
	}

	// Controls
	info.WriteString("\n" + components.SubtitleStyle.Render("Controls") + "\n")
	info.WriteString("Arrow keys: Move cursor\n")
	info.WriteString("Shift+Arrow: Move grid\n")
	info.WriteString("Enter: Inspect chunk\n")
	info.WriteString("r: Refresh  a: Auto-refresh\n")
	info.WriteString("i: Toggle info  q: Back\n")

	return components.InfoPanelStyle.Render(info.String())
}

// renderStatusBar renders the status bar
func (m ColumnExplorerModel) renderStatusBar() string {
	var status []string

	stored := 0
	for _, ok := range m.present {
		if ok {
			stored++
		}
	}
	status = append(status, fmt.Sprintf("Stored columns in view: %d", stored))

	if m.autoRefresh {
		status = append(status, "Auto-refresh: ON")
	} else {
		status = append(status, "Auto-refresh: OFF")
	}

	if !m.lastUpdated.IsZero() {
		status = append(status, fmt.Sprintf("Updated: %s", m.lastUpdated.Format("15:04:05")))
	}

	if m.errorMsg != "" {
		status = append(status, fmt.Sprintf("Error: %s", m.errorMsg))
	}

	return components.StatusBarStyle.Width(m.width).Render(strings.Join(status, " • "))
}

// SetSize updates the column explorer size
func (m *ColumnExplorerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// loadGridCmd checks every column of the grid against the store
func (m ColumnExplorerModel) loadGridCmd() tea.Cmd {
	store, centerX, centerZ := m.store, m.centerX, m.centerZ
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		present := make(map[[2]int32]bool)
		for dz := int32(-gridRadius); dz <= gridRadius; dz++ {
			for dx := int32(-gridRadius); dx <= gridRadius; dx++ {
				x := (centerX + dx) * chunk.Size
				z := (centerZ + dz) * chunk.Size
				ok, err := store.ExistsAny(ctx, x, z)
				if err != nil {
					return explorerErrorMsg(err.Error())
				}
				present[[2]int32{x, z}] = ok
			}
		}
		return gridLoadedMsg{centerX: centerX, centerZ: centerZ, present: present}
	}
}

// loadColumnCmd loads the column under the cursor through the cache
func (m ColumnExplorerModel) loadColumnCmd() tea.Cmd {
	manager, origin := m.manager, m.cursorOrigin()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snaps, err := manager.ColumnSnapshots(ctx, origin.Position())
		if err != nil {
			return explorerErrorMsg(err.Error())
		}

		loaded := make([]columnChunk, len(snaps))
		for i, snap := range snaps {
			loaded[i] = columnChunk{
				coord:  snap.Chunk.Coordinate(),
				state:  snap.State.String(),
				nonAir: snap.Chunk.CountNonAir(),
			}
		}
		return columnLoadedMsg{origin: origin, chunks: loaded}
	}
}

// tickCmd creates a command for auto-refresh
func (m ColumnExplorerModel) tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Messages
type gridLoadedMsg struct {
	centerX, centerZ int32
	present          map[[2]int32]bool
}

type columnLoadedMsg struct {
	origin chunk.Coord
	chunks []columnChunk
}

type explorerErrorMsg string

type tickMsg struct{}
