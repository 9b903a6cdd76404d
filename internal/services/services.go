// package services defines interface Service for interacting with the
// streaming service's web API.
package services

import (
	"context"
	"time"

	"github.com/desertthunder/freshcut/internal/paging"
	"golang.org/x/oauth2"
)

// Release type values reported by the API for an album object.
const (
	TypeAlbum  = "album"
	TypeSingle = "single"
)

// User is the authenticated user's identity.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// Playlist is a playlist owned by or followed by the user.
type Playlist struct {
	ID     string
	Name   string
	Public bool
}

// Album is a candidate release: an album or single hydrated with the fields
// the weekly selection needs. Treated as read-only once fetched.
type Album struct {
	ID          string
	Name        string
	Artists     []string
	AlbumType   string // album, single, compilation
	Popularity  int
	ReleaseDate time.Time
	TrackURIs   []string
}

// Service is the surface the curation engine depends on. Implementations
// authenticate once and serve all subsequent calls with that identity.
type Service interface {
	// Authenticate performs OAuth or token authentication with the service.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// Me retrieves the current authenticated user's profile.
	Me(ctx context.Context) (*User, error)

	// Playlists retrieves one page of the user's playlists.
	Playlists(ctx context.Context, page paging.Page) (paging.Result[Playlist], error)

	// NewReleases retrieves one page of recently released albums and
	// singles, hydrated with popularity, release date, and track URIs.
	NewReleases(ctx context.Context, page paging.Page) (paging.Result[Album], error)

	// CreatePlaylist creates a playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name string, public bool) (*Playlist, error)

	// ReplacePlaylistTracks overwrites the playlist's track list with uris.
	ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// AddPlaylistTracks appends uris to the end of the playlist.
	AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService is a Service whose authentication runs through a browser
// OAuth2 authorization code flow.
type OAuthService interface {
	Service

	// OAuthConfig exposes the underlying config for the callback server.
	OAuthConfig() *oauth2.Config

	// SetToken installs a token obtained out of band.
	SetToken(ctx context.Context, token *oauth2.Token)
}
