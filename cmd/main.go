package main

import (
	"context"
	"os"

	"github.com/desertthunder/freshcut/internal/services"
	"github.com/desertthunder/freshcut/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loaded, err := shared.LoadConfig("config.toml"); err == nil {
			config = loaded
		}
	} else if loaded, err := shared.LoadConfig(""); err == nil {
		// No file: defaults plus environment overlay.
		config = loaded
	}

	var spotify services.Service
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			spotify = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotify,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "freshcut",
		Usage:    "Curate weekly new-release playlists on Spotify",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
