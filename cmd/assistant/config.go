package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bizjuned/conversational-ai-assistant/core/backend"
	"github.com/bizjuned/conversational-ai-assistant/core/room"
)

type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
}

type RoomConfig struct {
	BaseURL string `yaml:"base_url"`
	Name    string `yaml:"name"`
}

type AudioConfig struct {
	// Driver selects the audio backend: miniaudio, portaudio or none.
	// portaudio is capture-only; none disables voice entirely.
	Driver string `yaml:"driver"`
}

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Room    RoomConfig    `yaml:"room"`
	Audio   AudioConfig   `yaml:"audio"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{BaseURL: backend.DefaultBaseURL},
		Room:    RoomConfig{BaseURL: room.DefaultBaseURL, Name: "ai-voice-bot"},
		Audio:   AudioConfig{Driver: "miniaudio"},
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Backend.BaseURL, "ASSISTANT_BACKEND_URL")
	overrideString(&cfg.Room.BaseURL, "ASSISTANT_ROOM_URL")
	overrideString(&cfg.Room.Name, "ASSISTANT_ROOM_NAME")
	overrideString(&cfg.Audio.Driver, "ASSISTANT_AUDIO_DRIVER")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func validate(cfg Config) error {
	if cfg.Backend.BaseURL == "" {
		return errors.New("backend.base_url must not be empty")
	}
	if cfg.Room.BaseURL == "" {
		return errors.New("room.base_url must not be empty")
	}
	if cfg.Room.Name == "" {
		return errors.New("room.name must not be empty")
	}
	switch cfg.Audio.Driver {
	case "miniaudio", "portaudio", "none":
	default:
		return errors.New("audio.driver must be one of miniaudio|portaudio|none")
	}
	return nil
}
