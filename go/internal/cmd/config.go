package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/openkart/pitwall/go/internal/racecontrol"
	"github.com/openkart/pitwall/go/internal/timer"
)

// Config is the operator console configuration. Connection settings come
// from the environment; the optional YAML file declares the timer widgets
// and per-action endpoint overrides for the round.
type Config struct {
	Timers  []timer.Config    `yaml:"timers"`
	Actions map[string]string `yaml:"actions"`
}

// RuntimeConfig bundles everything main needs to wire the console.
type RuntimeConfig struct {
	APIBaseURL     string
	WSBaseURL      string
	CSRFToken      string
	StationSecret  string
	RoundID        int64
	InitialButtons []string
	ConfigPath     string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadRuntimeConfig() (*RuntimeConfig, error) {
	roundID := getEnvAsInt("PITWALL_ROUND_ID", 0)
	if roundID == 0 {
		return nil, fmt.Errorf("PITWALL_ROUND_ID environment variable is required")
	}

	cfg := &RuntimeConfig{
		APIBaseURL:    getEnv("PITWALL_API_URL", "http://localhost:8000"),
		WSBaseURL:     getEnv("PITWALL_WS_URL", "ws://localhost:8000"),
		CSRFToken:     os.Getenv("PITWALL_CSRF_TOKEN"),
		StationSecret: os.Getenv("PITWALL_STATION_SECRET"),
		RoundID:       int64(roundID),
		ConfigPath:    getEnv("PITWALL_CONFIG", "pitwall.yaml"),
	}
	return cfg, nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// actionURLs maps the configured endpoint overrides onto race actions,
// falling back to the backend's conventional paths for the round.
func actionURLs(config *Config, roundID int64) map[racecontrol.Action]string {
	urls := map[racecontrol.Action]string{
		racecontrol.ActionPreCheck:     fmt.Sprintf("/race/%d/pre_check/", roundID),
		racecontrol.ActionStart:        fmt.Sprintf("/race/%d/start/", roundID),
		racecontrol.ActionPause:        fmt.Sprintf("/race/%d/pause/", roundID),
		racecontrol.ActionResume:       fmt.Sprintf("/race/%d/resume/", roundID),
		racecontrol.ActionEnd:          fmt.Sprintf("/race/%d/end/", roundID),
		racecontrol.ActionFalseStart:   fmt.Sprintf("/race/%d/false_start/", roundID),
		racecontrol.ActionFalseRestart: fmt.Sprintf("/race/%d/false_restart/", roundID),
	}
	if config == nil {
		return urls
	}
	for name, url := range config.Actions {
		urls[racecontrol.Action(name)] = url
	}
	return urls
}
