package main

import (
	"context"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openkart/pitwall/go/clients/raceapi"
	"github.com/openkart/pitwall/go/internal/console"
	"github.com/openkart/pitwall/go/internal/penalty"
	"github.com/openkart/pitwall/go/internal/racecontrol"
	"github.com/openkart/pitwall/go/internal/timer"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	setupLogging()

	rc, err := loadRuntimeConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	config, err := loadConfig(rc.ConfigPath)
	if err != nil {
		log.Warn().Err(err).Str("path", rc.ConfigPath).Msg("no console config file, using defaults")
		config = &Config{}
	}

	if err := run(rc, config); err != nil {
		log.Fatal().Err(err).Msg("console exited with error")
	}
}

// setupLogging routes zerolog to a file so log lines do not tear the
// terminal UI.
func setupLogging() {
	path := getEnv("PITWALL_LOG_FILE", "pitwall.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Logger = zerolog.Nop()
		return
	}
	log.Logger = zerolog.New(file).With().Timestamp().Logger()
}

func run(rc *RuntimeConfig, config *Config) error {
	ctx := context.Background()

	api := raceapi.New(rc.APIBaseURL, rc.CSRFToken)

	ctrl := &console.Controller{}
	program := tea.NewProgram(console.NewModel(ctrl), tea.WithAltScreen())
	sink := console.NewSink(program)

	registry := timer.NewRegistry(sink, timer.RegistryConfig{})
	defer registry.Close()

	panel := racecontrol.NewPanel(racecontrol.Config{
		API:            api,
		Display:        sink,
		Registry:       registry,
		RoundID:        rc.RoundID,
		WSBaseURL:      rc.WSBaseURL,
		ActionURLs:     actionURLs(config, rc.RoundID),
		InitialButtons: initialButtons(rc),
	})
	defer panel.Close()

	penalties := penalty.NewClient(penalty.Config{
		API:       api,
		Display:   sink,
		Signer:    penalty.NewSigner(rc.StationSecret),
		RoundID:   rc.RoundID,
		WSBaseURL: rc.WSBaseURL,
	})
	defer penalties.Close()

	ctrl.Panel = panel
	ctrl.Penalties = penalties

	log.Info().
		Int64("round_id", rc.RoundID).
		Str("api", rc.APIBaseURL).
		Str("ws", rc.WSBaseURL).
		Msg("pitwall console starting")

	// The sink blocks on Program.Send until Run is consuming messages, so
	// all wiring that renders runs once the program is up.
	go func() {
		for _, cfg := range config.Timers {
			if _, err := registry.Register(cfg); err != nil {
				log.Error().Err(err).Str("timer", cfg.ElementID).Msg("skipping invalid timer config")
			}
		}

		sink.UpdateButtons(panel.Buttons())
		panel.ConnectRound()
		panel.ConnectEmptyTeams()
		penalties.Connect(ctx)

		// Lanes connect on pre_check; a race already past that point needs
		// them immediately.
		if panel.State() != racecontrol.StateInitial {
			panel.ConnectLanes(ctx)
		}
	}()

	_, err := program.Run()
	return err
}

func initialButtons(rc *RuntimeConfig) []racecontrol.Action {
	raw := rc.InitialButtons
	if len(raw) == 0 {
		raw = strings.Split(getEnv("PITWALL_INITIAL_BUTTONS", "pre_check"), ",")
	}
	actions := make([]racecontrol.Action, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		actions = append(actions, racecontrol.Action(name))
	}
	return actions
}
