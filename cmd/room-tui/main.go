package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/videoroom/room/internal/app"
	"github.com/videoroom/room/internal/config"
	"github.com/videoroom/room/internal/logging"
	"github.com/videoroom/room/internal/sdk"
	"github.com/videoroom/room/internal/views/debug"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	wsURL := flag.String("url", "", "WebSocket URL of the session server")
	apiKey := flag.String("api-key", "", "Session API key")
	sessionID := flag.String("session", "", "Session id")
	token := flag.String("token", "", "Session token")
	name := flag.String("name", "", "Display name for the local publisher")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	setIf(&cfg.Session.URL, *wsURL)
	setIf(&cfg.Session.APIKey, *apiKey)
	setIf(&cfg.Session.SessionID, *sessionID)
	setIf(&cfg.Session.Token, *token)
	setIf(&cfg.Client.DisplayName, *name)

	// The terminal belongs to the UI, so logs go to a file if one is
	// configured and always to the debug overlay.
	var out io.Writer = io.Discard
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	debugLog := debug.NewLog()
	base := logging.New(cfg.Log, out)
	log := slog.New(logging.NewTee(base.Handler(), debugLog.Record))

	creds := sdk.Credentials{
		APIKey:    cfg.Session.APIKey,
		SessionID: cfg.Session.SessionID,
		Token:     cfg.Session.Token,
	}
	client := sdk.NewClient(cfg.Session.URL, creds,
		sdk.WithLogger(log),
		sdk.WithBackoff(cfg.Client.ReconnectBaseDelay, cfg.Client.ReconnectMaxDelay),
		sdk.WithDisplayName(cfg.Client.DisplayName),
	)
	httpClient := sdk.NewHTTPClient(sdk.HTTPBase(cfg.Session.URL), cfg.Session.APIKey)

	m := app.New(app.Deps{
		Client:         client,
		Preloader:      httpClient,
		Credentials:    creds,
		DisplayName:    cfg.Client.DisplayName,
		PreloadTimeout: cfg.Client.PreloadTimeout,
		Logger:         log,
		DebugLog:       debugLog,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
