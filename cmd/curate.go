package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/freshcut/internal/formatter"
	"github.com/desertthunder/freshcut/internal/paging"
	"github.com/desertthunder/freshcut/internal/server"
	"github.com/desertthunder/freshcut/internal/services"
	"github.com/desertthunder/freshcut/internal/shared"
	"github.com/desertthunder/freshcut/internal/tasks"
	"github.com/desertthunder/freshcut/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const windowLayout = "Mon Jan 2, 2006"

// loadConfig resolves the effective configuration for a command: the file
// named by --config when it exists, otherwise the runner's config.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		return config, nil
	}

	if r.config != nil {
		return r.config, nil
	}
	return shared.DefaultConfig(), nil
}

// ensureOAuthService returns the runner's Spotify service, building one from
// config when none was injected.
func (r *Runner) ensureOAuthService(config *shared.Config) (services.OAuthService, error) {
	if r.spotify == nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
		if err != nil {
			return nil, err
		}
		r.spotify = svc
		r.engine = tasks.NewCuratorEngine(svc)
	}

	oauthSvc, ok := r.spotify.(services.OAuthService)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support OAuth", shared.ErrServiceUnavailable, r.spotify.Name())
	}
	return oauthSvc, nil
}

// authenticate runs the browser OAuth flow and installs the token.
func (r *Runner) authenticate(ctx context.Context, cmd *cli.Command) (*shared.Config, services.OAuthService, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	svc, err := r.ensureOAuthService(config)
	if err != nil {
		return nil, nil, err
	}

	token, err := r.doOAuth(svc, config)
	if err != nil {
		return nil, nil, err
	}
	svc.SetToken(ctx, token)

	return config, svc, nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
//
// The browser lands on /login, which plants the state cookie and redirects
// to the consent page; /callback validates the state and exchanges the code.
func (r *Runner) doOAuth(svc services.OAuthService, config *shared.Config) (*oauth2.Token, error) {
	state := shared.GenerateState()

	oauthHandler := server.NewOAuthHandler(svc.OAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.LogRequests(r.logger))
	router.Handler(oauthHandler)

	serverAddr := config.Server.Addr()
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	loginURL := fmt.Sprintf("http://%s/login", serverAddr)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", loginURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// curateOpts builds engine options from config with flag overrides.
func (r *Runner) curateOpts(cmd *cli.Command, config *shared.Config) tasks.CurateOpts {
	opts := tasks.CurateOpts{
		AlbumsTitle:  config.Playlists.Albums,
		SinglesTitle: config.Playlists.Singles,
	}
	if v := cmd.String("albums"); v != "" {
		opts.AlbumsTitle = v
	}
	if v := cmd.String("singles"); v != "" {
		opts.SinglesTitle = v
	}
	return opts
}

// Run performs the full weekly curation and prints a summary.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config, _, err := r.authenticate(ctx, cmd)
	if err != nil {
		return err
	}

	opts := r.curateOpts(cmd, config)

	var result *tasks.CurateResult
	if cmd.Bool("ui") {
		model := ui.NewModel(ctx, r.engine, opts)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			return fmt.Errorf("progress view failed: %w", err)
		}
		if model.Err() != nil {
			return model.Err()
		}
		result = model.Result()
	} else {
		progress := make(chan tasks.ProgressUpdate, 50)
		drained := make(chan struct{})
		go func() {
			for update := range progress {
				r.logger.Info(update.Message, "phase", update.Phase.String())
			}
			close(drained)
		}()

		result, err = r.engine.Run(ctx, progress, opts)
		close(progress)
		<-drained
		if err != nil {
			return err
		}
	}

	return r.printRunResult(result, cmd.Bool("json"), cmd.Bool("pretty"))
}

// Preview fetches and ranks the week's releases without modifying playlists.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	config, _, err := r.authenticate(ctx, cmd)
	if err != nil {
		return err
	}

	result, err := r.engine.Preview(ctx, nil, r.curateOpts(cmd, config))
	if err != nil {
		return err
	}

	switch cmd.String("export") {
	case "":
	case "csv":
		files, err := formatter.WriteCSVExport(result.Ranked, cmd.String("output"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s and %s\n", files.AlbumsFile, files.SinglesFile)
	case "json":
		file, err := formatter.WriteJSONExport(result.Ranked, cmd.String("output"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s\n", file)
	default:
		return fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, cmd.String("export"))
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainHeader("This Week's Releases")
	r.writePlain("Window: %s through %s\n", result.Window.Start.Format(windowLayout), result.Window.End.Format(windowLayout))
	r.writePlain("Candidates: %d\n\n", result.PoolSize)
	return formatter.RenderReport(r.output, result.Ranked)
}

// Auth runs the OAuth flow once and reports the authenticated identity.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	_, svc, err := r.authenticate(ctx, cmd)
	if err != nil {
		return err
	}

	user, err := svc.Me(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	r.writePlain("✓ Authorization successful\n")
	r.writePlain("✓ Authenticated as %s (%s)\n", user.DisplayName, user.Email)
	return nil
}

// Playlists lists the user's playlists with an optional limit.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	_, svc, err := r.authenticate(ctx, cmd)
	if err != nil {
		return err
	}

	playlists, err := paging.FetchAll(ctx, svc.Playlists, paging.Options{
		PageSize: 50,
		Limiter:  rate.NewLimiter(5, 1),
	})
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, pl := range playlists {
		r.writePlain("%d. %s\n", i+1, pl.Name)
		r.writePlain("   ID: %s\n", pl.ID)
		if pl.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}

	return nil
}

// ConfigInit writes the example configuration file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlain("✓ Created %s\n", path)
}

func (r *Runner) printRunResult(result *tasks.CurateResult, useJSON, pretty bool) error {
	if useJSON {
		return r.writeJSON(result, pretty)
	}

	r.writePlainHeader("This Week's Releases")
	r.writePlain("Window: %s through %s\n", result.Window.Start.Format(windowLayout), result.Window.End.Format(windowLayout))
	r.writePlain("Candidates: %d\n\n", result.PoolSize)

	if err := formatter.RenderReport(r.output, result.Ranked); err != nil {
		return err
	}

	for _, sync := range []tasks.SyncResult{result.Albums, result.Singles} {
		status := "updated"
		if sync.Created {
			status = "created"
		}
		r.writePlain("✓ %s \"%s\": %d tracks in %d batches\n", status, sync.Playlist.Name, sync.Tracks, sync.Batches)
	}

	return nil
}
