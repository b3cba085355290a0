package models

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/VoidMesh/voxelstore/cmd/debug/components"
)

// MenuModel lists the inspector views for one save location
type MenuModel struct {
	location string
	entries  []menuEntry
	cursor   int
	width    int
	height   int
}

type menuEntry struct {
	key     string
	title   string
	summary string
	detail  []string
	view    ViewType
}

// NewMenuModel creates the menu for the save at location
func NewMenuModel(location string) MenuModel {
	return MenuModel{
		location: location,
		entries: []menuEntry{
			{
				key:     "c",
				title:   "Columns",
				summary: "stored columns around a point",
				detail: []string{
					"Grid of chunk columns marking the ones with stored rows.",
					"Loads the selected column through the cache and lists its chunks.",
				},
				view: ColumnExplorerView,
			},
			{
				key:     "s",
				title:   "Slices",
				summary: "one chunk, layer by layer",
				detail: []string{
					"Top-down view of a single 16x16 layer.",
					"Step through layers and stack neighbours with PgUp/PgDn.",
				},
				view: SliceView,
			},
			{
				key:     "o",
				title:   "Overview",
				summary: "row counts and cache counters",
				detail: []string{
					"Stored chunk count, cache partitions and flush history.",
				},
				view: OverviewView,
			},
		},
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		m.cursor = (m.cursor + len(m.entries) - 1) % len(m.entries)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(m.entries)
	case "enter", " ":
		return m, m.open(m.cursor)
	default:
		for i, e := range m.entries {
			if key.String() == e.key {
				m.cursor = i
				return m, m.open(i)
			}
		}
	}
	return m, nil
}

func (m MenuModel) open(i int) tea.Cmd {
	view := m.entries[i].view
	return func() tea.Msg {
		return NewSwitchViewMsg(view)
	}
}

func (m MenuModel) View() string {
	var s strings.Builder

	s.WriteString(components.TitleStyle.Render("voxelstore inspector") + "\n")
	s.WriteString(components.SubtitleStyle.Render("save: "+m.location) + "\n\n")

	var rows []string
	for i, e := range m.entries {
		row := fmt.Sprintf("[%s] %-9s %s", e.key, e.title, e.summary)
		if i == m.cursor {
			rows = append(rows, components.SelectedMenuItemStyle.Render(row))
		} else {
			rows = append(rows, components.MenuItemStyle.Render(row))
		}
	}
	list := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(components.PrimaryColor).
		Padding(0, 1).
		Render(strings.Join(rows, "\n"))

	detail := components.InfoPanelStyle.
		Width(48).
		Render(strings.Join(m.entries[m.cursor].detail, "\n"))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, " ", detail) + "\n\n")
	s.WriteString(components.HelpStyle.Render("↑/↓ select • enter or c/s/o open • ? help • q quit"))

	content := s.String()
	if m.width > 0 {
		if w := lipgloss.Width(content); w < m.width {
			content = lipgloss.NewStyle().PaddingLeft((m.width - w) / 2).Render(content)
		}
	}
	return content
}

// SetSize updates the menu size
func (m *MenuModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}
