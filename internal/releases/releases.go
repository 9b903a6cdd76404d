// package releases decides which candidate releases qualify for the weekly
// playlists and in what order.
//
// The qualifying window is always the most recently completed
// Saturday-through-Friday week strictly before the one in progress: runs on
// any day of the current week skip it and look at the week before.
package releases

import (
	"slices"
	"time"

	"github.com/desertthunder/freshcut/internal/services"
)

// MaxPerList caps each ranked output list.
const MaxPerList = 100

// Window is the inclusive date span of qualifying releases. Comparison
// against it is exclusive on both ends, mirroring the behavior of the
// system this replaces: a release dated exactly on Start or End is dropped.
type Window struct {
	Start time.Time // start of day, the window's Saturday
	End   time.Time // end of day, the window's Friday
}

// Contains reports whether t falls strictly inside the window.
func (w Window) Contains(t time.Time) bool {
	return t.After(w.Start) && t.Before(w.End)
}

// WeekOf computes the release window relative to now: the Saturday through
// Friday immediately preceding the Saturday-to-Friday week containing now.
//
// The window lives in UTC because release dates carry no zone and parse as
// UTC; computing it in a local zone would let the in-progress week's
// Saturday slip inside the bounds.
func WeekOf(now time.Time) Window {
	// Walk back to the Saturday starting the current week. If now is a
	// Saturday, the current week started today.
	current := startOfDay(now.UTC())
	for current.Weekday() != time.Saturday {
		current = current.AddDate(0, 0, -1)
	}

	start := current.AddDate(0, 0, -7)
	end := current.Add(-time.Millisecond) // end of the previous Friday
	return Window{Start: start, End: end}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Ranked holds the selected albums and singles, each sorted descending by
// popularity and truncated to MaxPerList entries.
type Ranked struct {
	Albums  []services.Album
	Singles []services.Album
}

// Total returns the combined number of selected releases.
func (r Ranked) Total() int {
	return len(r.Albums) + len(r.Singles)
}

// SelectWeek filters candidates to the window around now, ranks them by
// popularity, and partitions them into albums and singles.
//
// The sort is stable so candidates with equal popularity keep their original
// relative order, and the partition is a single pass so that order carries
// through. Release types other than album and single are dropped.
func SelectWeek(now time.Time, candidates []services.Album) Ranked {
	window := WeekOf(now)

	qualified := make([]services.Album, 0, len(candidates))
	for _, candidate := range candidates {
		if window.Contains(candidate.ReleaseDate) {
			qualified = append(qualified, candidate)
		}
	}

	slices.SortStableFunc(qualified, func(a, b services.Album) int {
		return b.Popularity - a.Popularity
	})

	var ranked Ranked
	for _, album := range qualified {
		switch album.AlbumType {
		case services.TypeAlbum:
			ranked.Albums = append(ranked.Albums, album)
		case services.TypeSingle:
			ranked.Singles = append(ranked.Singles, album)
		}
	}

	ranked.Albums = truncate(ranked.Albums)
	ranked.Singles = truncate(ranked.Singles)
	return ranked
}

func truncate(albums []services.Album) []services.Album {
	if len(albums) > MaxPerList {
		return albums[:MaxPerList]
	}
	return albums
}
