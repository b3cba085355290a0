package models

import (
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/log"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
)

// ViewType represents the different views in the debug tool
type ViewType int

const (
	MenuView ViewType = iota
	ColumnExplorerView
	SliceView
	OverviewView

	viewCount
)

// App is the main application model
type App struct {
	store   *db.Store
	manager *world.Manager

	// Current state
	currentView ViewType
	width       int
	height      int

	// View models
	menu           MenuModel
	columnExplorer ColumnExplorerModel
	slice          SliceViewModel
	overview       OverviewModel

	// UI state
	showHelp bool
}

// NewApp creates a new application instance
func NewApp(store *db.Store, manager *world.Manager, startView string) *App {
	app := &App{
		store:       store,
		manager:     manager,
		currentView: MenuView,
	}

	// Initialize view models
	app.menu = NewMenuModel(store.Location())
	app.columnExplorer = NewColumnExplorerModel(store, manager)
	app.slice = NewSliceViewModel(manager)
	app.overview = NewOverviewModel(store, manager)

	// Set starting view based on parameter
	switch startView {
	case "columns":
		app.currentView = ColumnExplorerView
	case "slices":
		app.currentView = SliceView
	case "overview":
		app.currentView = OverviewView
	default:
		app.currentView = MenuView
	}

	return app
}

// Init initializes the application
func (m *App) Init() tea.Cmd {
	log.Debug("Initializing debug tool")
	return m.getCurrentViewModel().Init()
}

// Update handles messages and updates the application state
func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Update all view models with new size
		m.menu.SetSize(msg.Width, msg.Height)
		m.columnExplorer.SetSize(msg.Width, msg.Height)
		m.slice.SetSize(msg.Width, msg.Height)
		m.overview.SetSize(msg.Width, msg.Height)

		return m, nil

	case tea.KeyMsg:
		// Global key bindings
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.currentView == MenuView {
				return m, tea.Quit
			}
			// If not in menu, go back to menu instead of quitting
			m.leaveCurrentView()
			m.currentView = MenuView
			return m, m.menu.Init()

		case "?":
			m.showHelp = !m.showHelp
			return m, nil

		case "tab":
			// Cycle through views
			m.leaveCurrentView()
			m.currentView = (m.currentView + 1) % viewCount
			return m, m.getCurrentViewModel().Init()
		}

	case SwitchViewMsg:
		m.leaveCurrentView()
		m.currentView = msg.View
		return m, m.getCurrentViewModel().Init()

	case InspectChunkMsg:
		m.leaveCurrentView()
		m.slice.SetCoord(msg.Coord)
		m.currentView = SliceView
		return m, m.slice.Init()
	}

	// Help view swallows everything else
	if m.showHelp {
		return m, nil
	}

	// Route message to current view
	switch m.currentView {
	case MenuView:
		newModel, cmd := m.menu.Update(msg)
		m.menu = newModel.(MenuModel)
		return m, cmd
	case ColumnExplorerView:
		newModel, cmd := m.columnExplorer.Update(msg)
		m.columnExplorer = newModel.(ColumnExplorerModel)
		return m, cmd
	case SliceView:
		newModel, cmd := m.slice.Update(msg)
		m.slice = newModel.(SliceViewModel)
		return m, cmd
	case OverviewView:
		newModel, cmd := m.overview.Update(msg)
		m.overview = newModel.(OverviewModel)
		return m, cmd
	}

	return m, nil
}

// View renders the application
func (m *App) View() string {
	if m.showHelp {
		return m.renderHelp()
	}
	return m.getCurrentViewModel().View()
}

func (m *App) leaveCurrentView() {
	if m.currentView == ColumnExplorerView {
		m.columnExplorer.Reset()
	}
}

// getCurrentViewModel returns the current view's model
func (m *App) getCurrentViewModel() interface {
	tea.Model
	tea.ViewModel
} {
	switch m.currentView {
	case ColumnExplorerView:
		return &m.columnExplorer
	case SliceView:
		return &m.slice
	case OverviewView:
		return &m.overview
	}
	return &m.menu
}

// renderHelp renders the help screen
func (m *App) renderHelp() string {
	return `
voxelstore Debug Tool - Help

Global Keys:
  q            Quit (from menu) / Back to menu
  Ctrl+C       Quit
  ?            Toggle this help
  Tab          Cycle through views
  c / s / o    Open a view (from menu)

Views:
  c  Columns   - Stored columns around a point
  s  Slices    - One chunk, layer by layer
  o  Overview  - Row counts and cache counters

Navigation:
  Arrow keys   Navigate grids and menus
  Enter        Select / inspect
  r            Refresh current view

Press ? again to close this help
`
}

// SwitchViewMsg is a message to switch views
type SwitchViewMsg struct {
	View ViewType
}

// NewSwitchViewMsg creates a new switch view message
func NewSwitchViewMsg(view ViewType) SwitchViewMsg {
	return SwitchViewMsg{View: view}
}

// InspectChunkMsg opens the slice view on a chunk
type InspectChunkMsg struct {
	Coord chunk.Coord
}
