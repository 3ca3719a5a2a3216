// Package ui implements an interactive terminal slideshow player using bubbletea's Elm architecture.
//
// The TUI walks through four views:
//  1. [SessionListView] : Browse saved sessions and pick one to play
//  2. [LoadingView] : Show per-channel progress while media is aggregated
//  3. [PlayerView] : Show the current image URL, its caption and playback status
//  4. [ErrorView] : Report a failed load; r retries the aggregation
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the Msg union type.
// Aggregation progress and slideshow state both arrive over channels, read one message at a time by commands
// so the UI never blocks on a producer.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, p/space, n, r, q) with contextual help
// displayed via charmbracelet/bubbles/help.
package ui
