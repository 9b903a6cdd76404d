package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/freshcut/internal/paging"
	"github.com/desertthunder/freshcut/internal/shared"
	th "github.com/desertthunder/freshcut/internal/testing"
	"golang.org/x/oauth2"
)

func testCredentials() map[string]string {
	return map[string]string{
		"client_id":     "test-client",
		"client_secret": "test-secret",
	}
}

// serviceWith builds an authenticated service whose HTTP traffic goes
// through the given transport.
func serviceWith(t *testing.T, transport http.RoundTripper) *SpotifyService {
	t.Helper()
	svc, err := NewSpotifyService(testCredentials())
	if err != nil {
		t.Fatalf("NewSpotifyService() error = %v", err)
	}
	svc.token = &oauth2.Token{AccessToken: "test-token"}
	svc.httpClient = &http.Client{Transport: transport}
	return svc
}

func TestNewSpotifyService(t *testing.T) {
	tests := []struct {
		name        string
		credentials map[string]string
		wantErr     error
	}{
		{name: "valid", credentials: testCredentials()},
		{name: "missing client_id", credentials: map[string]string{"client_secret": "s"}, wantErr: shared.ErrMissingCredentials},
		{name: "missing client_secret", credentials: map[string]string{"client_id": "c"}, wantErr: shared.ErrMissingCredentials},
		{name: "empty client_id", credentials: map[string]string{"client_id": "", "client_secret": "s"}, wantErr: shared.ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewSpotifyService(tt.credentials)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewSpotifyService() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSpotifyService() error = %v", err)
			}
			if svc.config.RedirectURL != "http://localhost:3000/callback" {
				t.Errorf("default redirect = %q", svc.config.RedirectURL)
			}
			if len(svc.config.Scopes) != 6 {
				t.Errorf("scopes = %v, want the 6 profile and playlist scopes", svc.config.Scopes)
			}
		})
	}
}

func TestSpotifyService_NotAuthenticated(t *testing.T) {
	svc, err := NewSpotifyService(testCredentials())
	if err != nil {
		t.Fatalf("NewSpotifyService() error = %v", err)
	}

	if _, err := svc.Me(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Errorf("Me() without token error = %v, want ErrNotAuthenticated", err)
	}
}

func TestSpotifyService_Me(t *testing.T) {
	transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/me" {
			t.Errorf("Me() sent %s %s, want GET /v1/me", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		return th.JSONResponse(http.StatusOK, `{"id":"user1","display_name":"Test User","email":"user@example.com"}`), nil
	})

	user, err := serviceWith(t, transport).Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if user.ID != "user1" || user.DisplayName != "Test User" || user.Email != "user@example.com" {
		t.Errorf("Me() = %+v", user)
	}
}

func TestSpotifyService_Me_APIError(t *testing.T) {
	svc := serviceWith(t, th.NewMockRoundTripper(th.JSONResponse(http.StatusUnauthorized, `{}`), nil))

	if _, err := svc.Me(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
		t.Errorf("Me() error = %v, want ErrAPIRequest", err)
	}
}

func TestSpotifyService_Me_BodyReadFailure(t *testing.T) {
	response := &http.Response{StatusCode: http.StatusOK, Body: &th.FCloser{}}
	svc := serviceWith(t, th.NewMockRoundTripper(response, nil))

	if _, err := svc.Me(context.Background()); err == nil {
		t.Error("Me() should surface body read failures")
	}
}

func TestSpotifyService_Playlists(t *testing.T) {
	transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/me/playlists" {
			t.Errorf("Playlists() path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "50" || q.Get("offset") != "100" {
			t.Errorf("Playlists() query = %s, want limit=50 offset=100", r.URL.RawQuery)
		}
		return th.JSONResponse(http.StatusOK, `{
			"items": [
				{"id": "pl1", "name": "First", "public": true},
				{"id": "pl2", "name": "Second", "public": false}
			],
			"total": 120, "limit": 50, "offset": 100
		}`), nil
	})

	result, err := serviceWith(t, transport).Playlists(context.Background(), paging.Page{Limit: 50, Offset: 100})
	if err != nil {
		t.Fatalf("Playlists() error = %v", err)
	}
	if result.Total != 120 || len(result.Items) != 2 {
		t.Errorf("Playlists() = %d items, total %d", len(result.Items), result.Total)
	}
	if result.Items[0].Name != "First" || !result.Items[0].Public {
		t.Errorf("Playlists() first item = %+v", result.Items[0])
	}
}

func TestSpotifyService_SearchNewAlbums(t *testing.T) {
	transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("SearchNewAlbums() path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "tag:new" || q.Get("type") != "album" {
			t.Errorf("SearchNewAlbums() query = %s, want q=tag:new type=album", r.URL.RawQuery)
		}
		return th.JSONResponse(http.StatusOK, `{
			"albums": {
				"items": [{"id": "alb1", "name": "Album One", "album_type": "album", "release_date": "2024-06-03"}],
				"total": 412, "limit": 50, "offset": 0
			}
		}`), nil
	})

	page, err := serviceWith(t, transport).SearchNewAlbums(context.Background(), paging.Page{Limit: 50})
	if err != nil {
		t.Fatalf("SearchNewAlbums() error = %v", err)
	}
	if page.Total != 412 || len(page.Items) != 1 || page.Items[0].ID != "alb1" {
		t.Errorf("SearchNewAlbums() = %+v", page)
	}
}

func TestSpotifyService_SeveralAlbums(t *testing.T) {
	t.Run("rejects empty and oversized batches", func(t *testing.T) {
		svc := serviceWith(t, th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			t.Error("no request should be issued for invalid input")
			return nil, nil
		}))

		if _, err := svc.SeveralAlbums(context.Background(), nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("SeveralAlbums(nil) error = %v, want ErrInvalidArgument", err)
		}
		if _, err := svc.SeveralAlbums(context.Background(), make([]string, 21)); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("SeveralAlbums(21 ids) error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("joins ids into one lookup", func(t *testing.T) {
		transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if got := r.URL.Query().Get("ids"); got != "a1,a2" {
				t.Errorf("SeveralAlbums() ids = %q, want a1,a2", got)
			}
			return th.JSONResponse(http.StatusOK, `{"albums": [
				{"id": "a1", "name": "One", "album_type": "album", "popularity": 61,
				 "release_date": "2024-06-03", "release_date_precision": "day",
				 "artists": [{"name": "Artist A"}],
				 "tracks": {"items": [{"uri": "spotify:track:t1"}, {"uri": "spotify:track:t2"}], "total": 2}},
				{"id": "a2", "name": "Two", "album_type": "single", "popularity": 44,
				 "release_date": "2024-06", "release_date_precision": "month",
				 "artists": [], "tracks": {"items": [], "total": 0}}
			]}`), nil
		})

		albums, err := serviceWith(t, transport).SeveralAlbums(context.Background(), []string{"a1", "a2"})
		if err != nil {
			t.Fatalf("SeveralAlbums() error = %v", err)
		}
		if len(albums) != 2 || albums[0].Popularity != 61 {
			t.Errorf("SeveralAlbums() = %+v", albums)
		}
	})
}

func TestSpotifyService_NewReleases(t *testing.T) {
	transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/v1/search":
			return th.JSONResponse(http.StatusOK, `{
				"albums": {
					"items": [
						{"id": "a1", "name": "One", "album_type": "album", "release_date": "2024-06-03"},
						{"id": "a2", "name": "Two", "album_type": "single", "release_date": "2024-06-04"}
					],
					"total": 2, "limit": 50, "offset": 0
				}
			}`), nil
		case "/v1/albums":
			return th.JSONResponse(http.StatusOK, `{"albums": [
				{"id": "a1", "name": "One", "album_type": "album", "popularity": 80,
				 "release_date": "2024-06-03", "release_date_precision": "day",
				 "artists": [{"name": "Artist A"}, {"name": "Artist B"}],
				 "tracks": {"items": [{"uri": "spotify:track:t1"}], "total": 1}},
				{"id": "a2", "name": "Two", "album_type": "single", "popularity": 55,
				 "release_date": "2024-06-04", "release_date_precision": "day",
				 "artists": [{"name": "Artist C"}],
				 "tracks": {"items": [{"uri": "spotify:track:t2"}], "total": 1}}
			]}`), nil
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			return th.JSONResponse(http.StatusNotFound, `{}`), nil
		}
	})

	result, err := serviceWith(t, transport).NewReleases(context.Background(), paging.Page{Limit: 50})
	if err != nil {
		t.Fatalf("NewReleases() error = %v", err)
	}
	if result.Total != 2 || len(result.Items) != 2 {
		t.Fatalf("NewReleases() = %d items, total %d", len(result.Items), result.Total)
	}

	first := result.Items[0]
	if first.Popularity != 80 || len(first.Artists) != 2 || len(first.TrackURIs) != 1 {
		t.Errorf("NewReleases() first album = %+v, want hydrated fields", first)
	}
	want := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if !first.ReleaseDate.Equal(want) {
		t.Errorf("NewReleases() release date = %v, want %v", first.ReleaseDate, want)
	}
}

func TestSpotifyService_CreatePlaylist(t *testing.T) {
	t.Run("posts to the user's collection", func(t *testing.T) {
		transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/users/user1/playlists" {
				t.Errorf("CreatePlaylist() sent %s %s", r.Method, r.URL.Path)
			}
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decoding request body: %v", err)
			}
			if body["name"] != "The Playlist" || body["public"] != true {
				t.Errorf("CreatePlaylist() body = %v", body)
			}
			return th.JSONResponse(http.StatusCreated, `{"id": "new1", "name": "The Playlist", "public": true}`), nil
		})

		pl, err := serviceWith(t, transport).CreatePlaylist(context.Background(), "user1", "The Playlist", true)
		if err != nil {
			t.Fatalf("CreatePlaylist() error = %v", err)
		}
		if pl.ID != "new1" || !pl.Public {
			t.Errorf("CreatePlaylist() = %+v", pl)
		}
	})

	t.Run("wraps failures", func(t *testing.T) {
		svc := serviceWith(t, th.NewMockRoundTripper(th.JSONResponse(http.StatusForbidden, `{}`), nil))

		_, err := svc.CreatePlaylist(context.Background(), "user1", "The Playlist", true)
		if !errors.Is(err, shared.ErrPlaylistCreate) {
			t.Errorf("CreatePlaylist() error = %v, want ErrPlaylistCreate", err)
		}
	})
}

func TestSpotifyService_WriteTracks(t *testing.T) {
	uris := []string{"spotify:track:t1", "spotify:track:t2"}

	t.Run("replace uses PUT", func(t *testing.T) {
		var gotMethod string
		transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotMethod = r.Method
			if r.URL.Path != "/v1/playlists/pl1/tracks" {
				t.Errorf("path = %s", r.URL.Path)
			}
			payload, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(payload), "spotify:track:t1") {
				t.Errorf("body = %s, want uris", payload)
			}
			return th.JSONResponse(http.StatusCreated, `{"snapshot_id": "snap"}`), nil
		})

		if err := serviceWith(t, transport).ReplacePlaylistTracks(context.Background(), "pl1", uris); err != nil {
			t.Fatalf("ReplacePlaylistTracks() error = %v", err)
		}
		if gotMethod != http.MethodPut {
			t.Errorf("ReplacePlaylistTracks() method = %s, want PUT", gotMethod)
		}
	})

	t.Run("add uses POST", func(t *testing.T) {
		var gotMethod string
		transport := th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotMethod = r.Method
			return th.JSONResponse(http.StatusCreated, `{"snapshot_id": "snap"}`), nil
		})

		if err := serviceWith(t, transport).AddPlaylistTracks(context.Background(), "pl1", uris); err != nil {
			t.Fatalf("AddPlaylistTracks() error = %v", err)
		}
		if gotMethod != http.MethodPost {
			t.Errorf("AddPlaylistTracks() method = %s, want POST", gotMethod)
		}
	})

	t.Run("rejects oversized batches without a request", func(t *testing.T) {
		svc := serviceWith(t, th.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			t.Error("no request should be issued for an oversized batch")
			return nil, nil
		}))

		err := svc.ReplacePlaylistTracks(context.Background(), "pl1", make([]string, TrackBatchMax+1))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("ReplacePlaylistTracks() error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		precision string
		want      time.Time
	}{
		{name: "day", date: "2024-06-03", precision: "day", want: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)},
		{name: "month", date: "2024-06", precision: "month", want: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{name: "year", date: "2024", precision: "year", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "unparseable collapses to zero", date: "not-a-date", precision: "day", want: time.Time{}},
		{name: "precision mismatch collapses to zero", date: "2024", precision: "day", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseReleaseDate(tt.date, tt.precision); !got.Equal(tt.want) {
				t.Errorf("parseReleaseDate(%q, %q) = %v, want %v", tt.date, tt.precision, got, tt.want)
			}
		})
	}
}

func TestSpotifyService_Authenticate(t *testing.T) {
	svc, err := NewSpotifyService(testCredentials())
	if err != nil {
		t.Fatalf("NewSpotifyService() error = %v", err)
	}

	t.Run("access token installs directly", func(t *testing.T) {
		if err := svc.Authenticate(context.Background(), map[string]string{"access_token": "tok"}); err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if svc.token.AccessToken != "tok" {
			t.Errorf("token = %+v", svc.token)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		fresh, _ := NewSpotifyService(testCredentials())
		if err := fresh.Authenticate(context.Background(), map[string]string{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("Authenticate() error = %v, want ErrMissingCredentials", err)
		}
	})
}
