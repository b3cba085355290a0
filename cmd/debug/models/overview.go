package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/VoidMesh/voxelstore/cmd/debug/components"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
)

// OverviewModel handles the save overview view
type OverviewModel struct {
	store   *db.Store
	manager *world.Manager
	width   int
	height  int

	rows     int64
	stats    world.Stats
	loadedAt time.Time
	errorMsg string
}

// NewOverviewModel creates a new overview model
func NewOverviewModel(store *db.Store, manager *world.Manager) OverviewModel {
	return OverviewModel{
		store:   store,
		manager: manager,
	}
}

// Init initializes the overview
func (m OverviewModel) Init() tea.Cmd {
	return m.loadCmd()
}

// Update handles overview messages
func (m OverviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, m.loadCmd()
		}

	case overviewLoadedMsg:
		m.rows = msg.rows
		m.stats = msg.stats
		m.loadedAt = time.Now()
		m.errorMsg = ""

	case overviewErrorMsg:
		m.errorMsg = string(msg)
	}

	return m, nil
}

// View renders the overview
func (m OverviewModel) View() string {
	var s strings.Builder

	title := components.TitleStyle.Render("Save Overview")
	s.WriteString(title + "\n\n")

	var body strings.Builder
	body.WriteString(components.SubtitleStyle.Render("Store") + "\n")
	body.WriteString(fmt.Sprintf("Location: %s\n", m.store.Location()))
	body.WriteString(fmt.Sprintf("Database: %s\n", m.store.Path()))
	body.WriteString(fmt.Sprintf("Chunk rows: %d\n\n", m.rows))

	body.WriteString(components.SubtitleStyle.Render("Cache") + "\n")
	body.WriteString(fmt.Sprintf("New: %d  Changed: %d  Unchanged: %d\n", m.stats.New, m.stats.Changed, m.stats.Unchanged))
	body.WriteString(fmt.Sprintf("Flushes: %d  Failed: %d\n", m.stats.Flushes, m.stats.FailedFlushes))
	if m.errorMsg != "" {
		body.WriteString("\nError: " + m.errorMsg + "\n")
	}
	s.WriteString(components.BorderStyle.Render(body.String()) + "\n\n")

	status := "Press 'r' to refresh • 'q' to go back"
	if !m.loadedAt.IsZero() {
		status += fmt.Sprintf(" • Updated: %s", m.loadedAt.Format("15:04:05"))
	}
	s.WriteString(components.StatusBarStyle.Width(m.width).Render(status))

	return s.String()
}

// SetSize updates the overview size
func (m *OverviewModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m OverviewModel) loadCmd() tea.Cmd {
	store, manager := m.store, m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rows, err := store.Count(ctx)
		if err != nil {
			return overviewErrorMsg(err.Error())
		}
		return overviewLoadedMsg{rows: rows, stats: manager.Stats()}
	}
}

type overviewLoadedMsg struct {
	rows  int64
	stats world.Stats
}

type overviewErrorMsg string
