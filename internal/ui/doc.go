// Package ui implements a terminal progress view using bubbletea's Elm architecture.
//
// The [Model] wraps one curation run: it launches the engine in a goroutine,
// drains the progress channel into messages, and renders the current phase
// with a spinner, a progress bar for paged fetches and track syncs, and an
// elapsed-time stopwatch.
//
// The view quits on its own when the run completes; the caller reads the
// outcome back through [Model.Result] and [Model.Err] and prints the summary
// on the plain terminal.
package ui
