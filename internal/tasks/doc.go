// Package tasks turns sessions into playable media lists with real-time progress reporting.
//
// # Core Operations
//
// The [Aggregator] interface defines two operations:
//
//  1. [Aggregator.Aggregate] : Concurrent channel fan-out
//     - Starts one fetch per channel and waits for all of them
//     - A failing or panicking channel contributes nothing
//     - Concatenates the contributions and shuffles them uniformly
//
//  2. [Aggregator.ResolveSession] : Aggregate for a stored session
//     - Uses the session's channel list and a per-channel limit
//     - Reports an empty result as shared.ErrNoMedia so the caller can retry
//
// [MediaAggregator.BulkExport] resolves many sessions behind a rate limiter and writes their media
// lists to disk through a worker pool, finishing with an export_manifest.json.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
