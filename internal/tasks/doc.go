// package tasks implements the weekly curation job.
//
// The core abstraction is CuratorEngine, which orchestrates one run end to
// end: resolve the target playlists, drain the new-release pool, select and
// rank the week's albums and singles, and sync their tracks into the
// playlists. Operations emit progress updates via channels for non-blocking
// status reporting to CLI/UI layers.
//
// Every stage completes before the next begins; the only concurrency lives
// inside the paged fetches.
package tasks
