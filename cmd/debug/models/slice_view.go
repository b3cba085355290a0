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
	"github.com/VoidMesh/voxelstore/internal/world"
)

// SliceViewModel draws one horizontal layer of a chunk from above.
type SliceViewModel struct {
	manager *world.Manager

	coord  chunk.Coord
	layer  int32
	width  int
	height int

	chunk    *chunk.Chunk
	state    string
	errorMsg string
}

// NewSliceViewModel creates a new slice view model
func NewSliceViewModel(manager *world.Manager) SliceViewModel {
	return SliceViewModel{manager: manager}
}

// SetCoord selects the chunk to draw, starting at its bottom layer
func (m *SliceViewModel) SetCoord(coord chunk.Coord) {
	m.coord = coord
	m.layer = 0
	m.chunk = nil
}

// Init initializes the slice view
func (m SliceViewModel) Init() tea.Cmd {
	return m.loadChunkCmd()
}

// Update handles slice view messages
func (m SliceViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		// Layer within the chunk
		case "up", "k", "+":
			if m.layer < chunk.Size-1 {
				m.layer++
			}
		case "down", "j", "-":
			if m.layer > 0 {
				m.layer--
			}

		// Chunk above and below
		case "pgup", "K":
			m.coord = m.coord.Offset(0, 1, 0)
			return m, m.loadChunkCmd()
		case "pgdown", "J":
			m.coord = m.coord.Offset(0, -1, 0)
			return m, m.loadChunkCmd()

		case "r":
			return m, m.loadChunkCmd()
		}

	case sliceLoadedMsg:
		if msg.coord == m.coord {
			m.chunk = msg.chunk
			m.state = msg.state
			m.errorMsg = ""
		}

	case sliceErrorMsg:
		m.errorMsg = string(msg)
	}

	return m, nil
}

// View renders the slice view
func (m SliceViewModel) View() string {
	var s strings.Builder

	title := components.TitleStyle.Render(fmt.Sprintf("Chunk %s - layer y=%d", m.coord, m.coord.Y+m.layer))
	s.WriteString(title + "\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderLayer(), m.renderInfoPanel()) + "\n")

	status := []string{fmt.Sprintf("State: %s", m.state)}
	if m.errorMsg != "" {
		status = append(status, fmt.Sprintf("Error: %s", m.errorMsg))
	}
	s.WriteString(components.StatusBarStyle.Width(m.width).Render(strings.Join(status, " • ")))

	return s.String()
}

func (m SliceViewModel) renderLayer() string {
	if m.chunk == nil {
		if m.errorMsg != "" {
			return components.BorderStyle.Render("Error: " + m.errorMsg)
		}
		return components.BorderStyle.Render("No chunk at this coordinate")
	}

	var rows []string
	for z := int32(0); z < chunk.Size; z++ {
		var row []string
		for x := int32(0); x < chunk.Size; x++ {
			b := m.chunk.BlockAt(chunk.Position{X: x, Y: m.layer, Z: z})
			style := components.GridCellStyle.Foreground(components.GetBlockColor(b.Type))
			row = append(row, style.Render(components.GetBlockSymbol(b.Type)))
		}
		rows = append(rows, strings.Join(row, ""))
	}

	return components.BorderStyle.
		Width(chunk.Size*2 + 2).
		Height(chunk.Size + 2).
		Render(strings.Join(rows, "\n"))
}

func (m SliceViewModel) renderInfoPanel() string {
	var info strings.Builder

	info.WriteString(components.SubtitleStyle.Render("Layer") + "\n")
	if m.chunk != nil {
		counts := make(map[chunk.ItemType]int)
		for z := int32(0); z < chunk.Size; z++ {
			for x := int32(0); x < chunk.Size; x++ {
				counts[m.chunk.BlockAt(chunk.Position{X: x, Y: m.layer, Z: z}).Type]++
			}
		}
		for t := chunk.Air; t <= chunk.Wood; t++ {
			if counts[t] > 0 {
				info.WriteString(fmt.Sprintf("%s %-6s %d\n", components.GetBlockSymbol(t), t, counts[t]))
			}
		}
		info.WriteString(fmt.Sprintf("\nChunk total: %d\n", m.chunk.CountNonAir()))
	}

	info.WriteString("\n" + components.SubtitleStyle.Render("Controls") + "\n")
	info.WriteString("Up/Down: Change layer\n")
	info.WriteString("PgUp/PgDn: Chunk above/below\n")
	info.WriteString("r: Refresh  q: Back\n")

	return components.InfoPanelStyle.Render(info.String())
}

// SetSize updates the slice view size
func (m *SliceViewModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m SliceViewModel) loadChunkCmd() tea.Cmd {
	manager, coord := m.manager, m.coord
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// the view keeps its own copy so redraws never touch the live cache
		snap, ok, err := manager.Snapshot(ctx, coord.Position())
		if err != nil {
			return sliceErrorMsg(err.Error())
		}
		if !ok {
			return sliceLoadedMsg{coord: coord, state: "missing"}
		}
		return sliceLoadedMsg{coord: coord, chunk: snap.Chunk, state: snap.State.String()}
	}
}

type sliceLoadedMsg struct {
	coord chunk.Coord
	chunk *chunk.Chunk
	state string
}

type sliceErrorMsg string
