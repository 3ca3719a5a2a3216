// Package slideshow drives timed playback through a fixed list of media URLs.
//
// An [Engine] moves through the phases Idle, Empty, Ready, Displaying and Paused:
//
//	Ready ──image loaded──▶ Displaying ──interval──▶ Displaying (next index)
//	                          │    ▲
//	                    Pause │    │ Resume (fresh full interval)
//	                          ▼    │
//	                          Paused
//
// Any phase returns to Idle on [Engine.Reset]. An engine built over an empty list is Empty and stays
// there until [Engine.SetMedia] provides new media.
//
// Each entry into an index starts a load of the current image through a [Loader]. The load is
// bounded by a timeout; a failed or stalled load still marks the slot ready so playback never stalls.
// Once ready, the successor is preloaded, a caption is requested from the [Captioner], and the advance
// timer is armed. Captions arrive independently of the timer and are dropped if the index has
// moved on.
//
// Every slot entry bumps a generation counter. Loads, captions and timer callbacks carry the generation
// they were started under and are ignored once it is stale, so a cancelled timer or a late result can
// never double-advance or mutate a torn-down engine.
//
// State changes are published on [Engine.Updates] without blocking; [Engine.State] always returns the
// latest snapshot.
package slideshow
