package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	session "github.com/bizjuned/conversational-ai-assistant/core"
	"github.com/bizjuned/conversational-ai-assistant/core/audio/miniaudio"
	"github.com/bizjuned/conversational-ai-assistant/core/audio/portaudio"
	"github.com/bizjuned/conversational-ai-assistant/core/backend"
	"github.com/bizjuned/conversational-ai-assistant/core/room"
)

const portaudioBufferSize = 3200

func main() {
	configPath := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	controller, cleanup, err := buildController(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up session: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	program := tea.NewProgram(newModel(cfg, controller), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "assistant exited with error: %v\n", err)
		os.Exit(1)
	}
}

func buildController(cfg Config) (*session.Controller, func(), error) {
	backendClient := backend.NewClient(backend.WithBaseURL(cfg.Backend.BaseURL))
	tokens := room.NewTokenClient(room.WithBaseURL(cfg.Room.BaseURL))

	var capture room.CaptureClient
	var sink session.SinkBuffer
	cleanup := func() {}

	switch cfg.Audio.Driver {
	case "miniaudio":
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
		}
		capture = client
		sink = client
		cleanup = client.Close
	case "portaudio":
		client, err := portaudio.NewClient(portaudioBufferSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize portaudio: %w", err)
		}
		capture = client
		cleanup = client.Close
	case "none":
	}

	options := []session.ControllerOption{
		session.WithBackend(backendClient),
		session.WithRoomService(room.NewService(capture, room.WithTokenClient(tokens))),
		session.WithRoomName(cfg.Room.Name),
	}
	if sink != nil {
		options = append(options, session.WithSinkBuffer(sink))
	}

	return session.NewController(options...), cleanup, nil
}
