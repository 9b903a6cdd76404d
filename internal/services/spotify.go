// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/freshcut/internal/paging"
	"github.com/desertthunder/freshcut/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// newReleaseQuery is the search filter the service interprets as
	// "released in the last two weeks".
	newReleaseQuery = "tag:new"

	// severalAlbumsMax is the API's cap on ids per full-album lookup.
	severalAlbumsMax = 20

	// TrackBatchMax is the API's cap on URIs per playlist write request.
	TrackBatchMax = 10
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a full Spotify album object.
type SpotifyAlbum struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	AlbumType            string          `json:"album_type"`
	Artists              []SpotifyArtist `json:"artists"`
	Popularity           int             `json:"popularity"`
	ReleaseDate          string          `json:"release_date"`
	ReleaseDatePrecision string          `json:"release_date_precision"`
	TotalTracks          int             `json:"total_tracks"`
	URI                  string          `json:"uri"`
	Tracks               albumTracks     `json:"tracks"`
}

type albumTracks struct {
	Items []albumTrack `json:"items"`
	Total int          `json:"total"`
}

type albumTrack struct {
	URI string `json:"uri"`
}

// SpotifySimpleAlbum represents the simplified album object returned by
// search, without popularity or tracks.
type SpotifySimpleAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AlbumType   string `json:"album_type"`
	ReleaseDate string `json:"release_date"`
}

// SpotifyPaginatedAlbums represents the paginated album block of a search response.
type SpotifyPaginatedAlbums struct {
	Items  []SpotifySimpleAlbum `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type searchResponse struct {
	Albums SpotifyPaginatedAlbums `json:"albums"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
	URI    string `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides playlist read/write operations.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.SetToken(ctx, &oauth2.Token{AccessToken: accessToken})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: code exchange: %v", shared.ErrAuthFailed, err)
		}
		s.SetToken(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// SetToken installs a token obtained out of band (e.g. by the callback
// server) and rebuilds the HTTP client around it.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the underlying [oauth2.Config] for the callback server.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := spotifyBaseURL + endpoint

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Me retrieves the current authenticated user's profile.
func (s *SpotifyService) Me(ctx context.Context) (*User, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &User{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}, nil
}

// Playlists retrieves one page of the current user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context, page paging.Page) (paging.Result[Playlist], error) {
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", page.Limit, page.Offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return paging.Result[Playlist]{}, err
	}

	items := make([]Playlist, 0, len(response.Items))
	for _, sp := range response.Items {
		items = append(items, Playlist{ID: sp.ID, Name: sp.Name, Public: sp.Public})
	}
	return paging.Result[Playlist]{Items: items, Total: response.Total}, nil
}

// SearchNewAlbums retrieves one page of the service's recent-release search
// results (simplified album objects).
func (s *SpotifyService) SearchNewAlbums(ctx context.Context, page paging.Page) (*SpotifyPaginatedAlbums, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=album&limit=%d&offset=%d",
		url.QueryEscape(newReleaseQuery), page.Limit, page.Offset)

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response.Albums, nil
}

// SeveralAlbums retrieves multiple full albums by their IDs (up to 20).
func (s *SpotifyService) SeveralAlbums(ctx context.Context, albumIDs []string) ([]SpotifyAlbum, error) {
	if len(albumIDs) == 0 {
		return nil, fmt.Errorf("%w: no album IDs provided", shared.ErrInvalidArgument)
	}
	if len(albumIDs) > severalAlbumsMax {
		return nil, fmt.Errorf("%w: maximum %d album IDs allowed", shared.ErrInvalidArgument, severalAlbumsMax)
	}

	ids := strings.Join(albumIDs, ",")
	endpoint := fmt.Sprintf("/albums?ids=%s", url.QueryEscape(ids))

	var response struct {
		Albums []SpotifyAlbum `json:"albums"`
	}

	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return response.Albums, nil
}

// NewReleases retrieves one page of recent releases hydrated into [Album]
// records: a search page for the ids, then full-album lookups for
// popularity, precise release dates, and track URIs.
func (s *SpotifyService) NewReleases(ctx context.Context, page paging.Page) (paging.Result[Album], error) {
	searched, err := s.SearchNewAlbums(ctx, page)
	if err != nil {
		return paging.Result[Album]{}, err
	}

	ids := make([]string, 0, len(searched.Items))
	for _, item := range searched.Items {
		ids = append(ids, item.ID)
	}

	albums := make([]Album, 0, len(ids))
	for start := 0; start < len(ids); start += severalAlbumsMax {
		end := min(start+severalAlbumsMax, len(ids))

		full, err := s.SeveralAlbums(ctx, ids[start:end])
		if err != nil {
			return paging.Result[Album]{}, err
		}
		for _, sa := range full {
			albums = append(albums, sa.toAlbum())
		}
	}

	return paging.Result[Album]{Items: albums, Total: searched.Total}, nil
}

// CreatePlaylist creates a playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name string, public bool) (*Playlist, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	body := map[string]any{"name": name, "public": public}

	var created SpotifySimplePlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistCreate, err)
	}

	return &Playlist{ID: created.ID, Name: created.Name, Public: created.Public}, nil
}

// ReplacePlaylistTracks overwrites the playlist's contents with uris.
func (s *SpotifyService) ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	return s.writeTracks(ctx, http.MethodPut, playlistID, uris)
}

// AddPlaylistTracks appends uris to the end of the playlist.
func (s *SpotifyService) AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	return s.writeTracks(ctx, http.MethodPost, playlistID, uris)
}

func (s *SpotifyService) writeTracks(ctx context.Context, method, playlistID string, uris []string) error {
	if len(uris) > TrackBatchMax {
		return fmt.Errorf("%w: maximum %d track URIs per request", shared.ErrInvalidArgument, TrackBatchMax)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string]any{"uris": uris}
	return s.doRequest(ctx, method, endpoint, body, nil)
}

func (sa SpotifyAlbum) toAlbum() Album {
	artists := make([]string, 0, len(sa.Artists))
	for _, artist := range sa.Artists {
		artists = append(artists, artist.Name)
	}

	uris := make([]string, 0, len(sa.Tracks.Items))
	for _, track := range sa.Tracks.Items {
		uris = append(uris, track.URI)
	}

	return Album{
		ID:          sa.ID,
		Name:        sa.Name,
		Artists:     artists,
		AlbumType:   sa.AlbumType,
		Popularity:  sa.Popularity,
		ReleaseDate: parseReleaseDate(sa.ReleaseDate, sa.ReleaseDatePrecision),
		TrackURIs:   uris,
	}
}

// parseReleaseDate handles the API's variable release date precision.
// Unparseable dates collapse to the zero time, which never falls inside a
// release window.
func parseReleaseDate(date, precision string) time.Time {
	layout := "2006-01-02"
	switch precision {
	case "year":
		layout = "2006"
	case "month":
		layout = "2006-01"
	}

	t, err := time.Parse(layout, date)
	if err != nil {
		return time.Time{}
	}
	return t
}
