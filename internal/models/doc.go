// Package models defines the domain entities shared by the joip slideshow engine, its storage and its surfaces.
//
//   - [Session] : a reusable slideshow configuration (channels, interval, transition, caption prompt)
//   - [SessionPatch] : a partial update applied by the session store
//   - [TransitionMode] : presentation hint selecting the visual effect between slides
//
// Channel input helpers ([NormalizeChannel], [ParseChannels]) live here so the store, the CLI and the
// HTTP API agree on the canonical channel name.
package models
