package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/log"

	"github.com/VoidMesh/voxelstore/cmd/debug/models"
	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
)

func main() {
	saveLocation := flag.String("save", "./save", "Save location holding the world database")
	startView := flag.String("view", "menu", "Starting view (menu, columns, slices, overview)")
	logLevel := flag.String("log", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Setup logging
	switch *logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	// Setup file logging for debug
	if len(os.Getenv("DEBUG")) > 0 {
		f, err := tea.LogToFile("debug.log", "debug")
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		defer f.Close()
	}

	// Open the save read-mostly: the debug tool never flushes, so nothing it
	// loads is written back.
	store, err := db.Open(*saveLocation, db.Options{})
	if err != nil {
		log.Fatal("Failed to open save", "error", err, "save_location", *saveLocation)
	}
	defer store.Close()

	codec, err := chunk.NewCodec()
	if err != nil {
		log.Fatal("Failed to create chunk codec", "error", err)
	}
	defer codec.Close()

	manager := world.NewManager(world.StoreAdapter{Store: store}, codec, world.Options{})

	// Initialize the main app model
	app := models.NewApp(store, manager, *startView)

	// Create and run the Bubble Tea program
	program := tea.NewProgram(app, tea.WithAltScreen())

	log.Info("Starting voxelstore Debug Tool", "save_location", store.Location(), "start_view", *startView)

	if _, err := program.Run(); err != nil {
		log.Fatal("Error running debug tool", "error", err)
	}
}
