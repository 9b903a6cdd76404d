package tasks

import (
	"fmt"

	"github.com/desertthunder/freshcut/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Fraction returns the phase's completion ratio in [0, 1].
func (u ProgressUpdate) Fraction() float64 {
	if u.Total <= 0 {
		return 0
	}
	return float64(u.Step) / float64(u.Total)
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	ResolvePlaylists
	FetchReleases
	SelectReleases
	SyncTracks
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case ResolvePlaylists:
		return "resolve_playlists"
	case FetchReleases:
		return "fetch_releases"
	case SelectReleases:
		return "select_releases"
	case SyncTracks:
		return "sync_tracks"
	default:
		return ""
	}
}

func profileUpdate(user *services.User) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchProfile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Authenticated as %s (%s)", user.DisplayName, user.Email),
		Data:    user,
	}
}

func playlistPageUpdate(fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylists,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetching playlists (%d/%d)...", fetched, total),
	}
}

func resolvedPlaylistUpdate(title string, pl *services.Playlist, created bool) ProgressUpdate {
	message := fmt.Sprintf("Found \"%s\" at %s", title, pl.ID)
	if created {
		message = fmt.Sprintf("Created \"%s\" at %s", title, pl.ID)
	}
	return ProgressUpdate{
		Phase:   ResolvePlaylists,
		Step:    1,
		Total:   1,
		Message: message,
		Data:    pl,
	}
}

func releasePageUpdate(fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchReleases,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetching new releases (%d/%d)...", fetched, total),
	}
}

func selectedUpdate(albums, singles int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectReleases,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Selected %d albums and %d singles from last week", albums, singles),
	}
}

func syncBatchUpdate(title string, added, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncTracks,
		Step:    added,
		Total:   total,
		Message: fmt.Sprintf("Syncing \"%s\" (%d/%d tracks)...", title, added, total),
	}
}
