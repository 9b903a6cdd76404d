package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/freshcut/internal/paging"
	"github.com/desertthunder/freshcut/internal/releases"
	"github.com/desertthunder/freshcut/internal/services"
	"github.com/desertthunder/freshcut/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// defaultPageSize matches the API's maximum page size for both the
	// playlist and search endpoints.
	defaultPageSize = 50

	// defaultRateLimit paces page requests (requests per second).
	defaultRateLimit = 5.0
)

// CurateOpts configures a curation run.
type CurateOpts struct {
	AlbumsTitle  string        // target playlist for albums
	SinglesTitle string        // target playlist for singles
	PageSize     int           // page size for paged fetches (default 50)
	RateLimit    float64       // page requests per second (default 5)
	RetryDelay   time.Duration // per-page retry delay (default paging.DefaultRetryDelay)
	Now          time.Time     // reference time for the release window (default time.Now())
}

func (o CurateOpts) withDefaults() CurateOpts {
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// SyncResult records what one playlist sync did.
type SyncResult struct {
	Playlist *services.Playlist
	Created  bool // playlist was created rather than found
	Tracks   int  // tracks written
	Batches  int  // write requests issued
}

// CurateResult contains all data from a full curation run.
type CurateResult struct {
	User     *services.User
	Window   releases.Window
	PoolSize int // candidate releases fetched before filtering
	Ranked   releases.Ranked
	Albums   SyncResult
	Singles  SyncResult
}

// CuratorEngine runs the weekly new-release curation against a music service.
type CuratorEngine struct {
	svc services.Service
}

// NewCuratorEngine creates a CuratorEngine backed by the provided service.
func NewCuratorEngine(svc services.Service) *CuratorEngine {
	return &CuratorEngine{svc: svc}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *CuratorEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs a full curation: profile, playlist resolution, release pool
// fetch, weekly selection, and track sync for both target playlists.
func (e *CuratorEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts CurateOpts) (*CurateResult, error) {
	if e.svc == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	opts = opts.withDefaults()

	user, err := e.svc.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching profile: %v", shared.ErrAPIRequest, err)
	}
	e.sendProgress(progress, profileUpdate(user))

	result := &CurateResult{User: user, Window: releases.WeekOf(opts.Now)}

	playlists, err := e.fetchPlaylists(ctx, progress, opts)
	if err != nil {
		return nil, err
	}

	albumsPl, createdAlbums, err := e.ResolveOrCreate(ctx, user.ID, opts.AlbumsTitle, playlists)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, resolvedPlaylistUpdate(opts.AlbumsTitle, albumsPl, createdAlbums))

	singlesPl, createdSingles, err := e.ResolveOrCreate(ctx, user.ID, opts.SinglesTitle, playlists)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, resolvedPlaylistUpdate(opts.SinglesTitle, singlesPl, createdSingles))

	pool, err := e.fetchReleasePool(ctx, progress, opts)
	if err != nil {
		return nil, err
	}
	result.PoolSize = len(pool)

	result.Ranked = releases.SelectWeek(opts.Now, pool)
	e.sendProgress(progress, selectedUpdate(len(result.Ranked.Albums), len(result.Ranked.Singles)))

	result.Albums, err = e.syncPlaylist(ctx, progress, opts.AlbumsTitle, albumsPl, createdAlbums, result.Ranked.Albums)
	if err != nil {
		return nil, err
	}

	result.Singles, err = e.syncPlaylist(ctx, progress, opts.SinglesTitle, singlesPl, createdSingles, result.Ranked.Singles)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Preview fetches and selects the week's releases without touching any
// playlist: no resolution, no creation, no track writes.
func (e *CuratorEngine) Preview(ctx context.Context, progress chan<- ProgressUpdate, opts CurateOpts) (*CurateResult, error) {
	if e.svc == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	opts = opts.withDefaults()

	user, err := e.svc.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching profile: %v", shared.ErrAPIRequest, err)
	}
	e.sendProgress(progress, profileUpdate(user))

	result := &CurateResult{User: user, Window: releases.WeekOf(opts.Now)}

	pool, err := e.fetchReleasePool(ctx, progress, opts)
	if err != nil {
		return nil, err
	}
	result.PoolSize = len(pool)

	result.Ranked = releases.SelectWeek(opts.Now, pool)
	e.sendProgress(progress, selectedUpdate(len(result.Ranked.Albums), len(result.Ranked.Singles)))

	return result, nil
}

// fetchPlaylists drains the user's playlist collection through the paging engine.
func (e *CuratorEngine) fetchPlaylists(ctx context.Context, progress chan<- ProgressUpdate, opts CurateOpts) ([]services.Playlist, error) {
	return paging.FetchAll(ctx, e.svc.Playlists, paging.Options{
		PageSize:   opts.PageSize,
		RetryDelay: opts.RetryDelay,
		Limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		OnProgress: func(fetched, total int) {
			e.sendProgress(progress, playlistPageUpdate(fetched, total))
		},
	})
}

// fetchReleasePool drains the new-release collection through the paging engine.
func (e *CuratorEngine) fetchReleasePool(ctx context.Context, progress chan<- ProgressUpdate, opts CurateOpts) ([]services.Album, error) {
	return paging.FetchAll(ctx, e.svc.NewReleases, paging.Options{
		PageSize:   opts.PageSize,
		RetryDelay: opts.RetryDelay,
		Limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		OnProgress: func(fetched, total int) {
			e.sendProgress(progress, releasePageUpdate(fetched, total))
		},
	})
}

// ResolveOrCreate looks up existing for a playlist whose name equals title
// exactly (case sensitive, first match wins). When absent it creates a
// public playlist with that title. Creation is not retried; a failure
// propagates immediately.
func (e *CuratorEngine) ResolveOrCreate(ctx context.Context, userID, title string, existing []services.Playlist) (*services.Playlist, bool, error) {
	for _, pl := range existing {
		if pl.Name == title {
			return &pl, false, nil
		}
	}

	created, err := e.svc.CreatePlaylist(ctx, userID, title, true)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q: %v", shared.ErrPlaylistCreate, title, err)
	}
	return created, true, nil
}

func (e *CuratorEngine) syncPlaylist(ctx context.Context, progress chan<- ProgressUpdate, title string, pl *services.Playlist, created bool, albums []services.Album) (SyncResult, error) {
	tracks, batches, err := e.SyncAlbumTracks(ctx, progress, title, pl.ID, albums)
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Playlist: pl, Created: created, Tracks: tracks, Batches: batches}, nil
}

// SyncAlbumTracks replaces the playlist's contents with the tracks of the
// given albums, preserving album order then in-album track order.
//
// URIs are written in batches of at most the API's per-request cap. The
// first batch is a full replace, which clears prior contents; every
// subsequent batch appends. Batches go out strictly sequentially and a
// failed batch aborts the sync, leaving the playlist partially updated.
func (e *CuratorEngine) SyncAlbumTracks(ctx context.Context, progress chan<- ProgressUpdate, title, playlistID string, albums []services.Album) (int, int, error) {
	uris := flattenTrackURIs(albums)
	total := len(uris)

	// No URIs means no batches: the playlist is left untouched.
	batches := 0
	for start := 0; start < total; start += services.TrackBatchMax {
		end := min(start+services.TrackBatchMax, total)
		batch := uris[start:end]

		var err error
		if start == 0 {
			err = e.svc.ReplacePlaylistTracks(ctx, playlistID, batch)
		} else {
			err = e.svc.AddPlaylistTracks(ctx, playlistID, batch)
		}
		if err != nil {
			return end - len(batch), batches, fmt.Errorf("%w: %q batch at %d: %v", shared.ErrSync, title, start, err)
		}

		batches++
		e.sendProgress(progress, syncBatchUpdate(title, end, total))
	}

	return total, batches, nil
}

// flattenTrackURIs concatenates every album's track URIs, keeping album
// order and in-album track order.
func flattenTrackURIs(albums []services.Album) []string {
	var uris []string
	for _, album := range albums {
		uris = append(uris, album.TrackURIs...)
	}
	return uris
}
