package tasks

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/services"
	"github.com/desertthunder/joip/internal/shared"
)

// DefaultSessionLimit is the per-channel listing size used when resolving a session.
const DefaultSessionLimit = 20

// Aggregator resolves channel lists into media lists.
type Aggregator interface {
	// Aggregate fetches every channel concurrently and returns the shuffled concatenation of their media.
	Aggregate(ctx context.Context, channels []string, perChannelLimit int, progress chan<- ProgressUpdate) []string

	// ResolveSession aggregates the session's channels, failing with [shared.ErrNoMedia] when nothing was found.
	ResolveSession(ctx context.Context, session *models.Session, limit int, progress chan<- ProgressUpdate) ([]string, error)
}

// MediaAggregator implements [Aggregator] on top of a [services.MediaFetcher].
type MediaAggregator struct {
	fetcher services.MediaFetcher
	logger  *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMediaAggregator creates a [MediaAggregator]. A nil logger discards output.
func NewMediaAggregator(fetcher services.MediaFetcher, logger *log.Logger) *MediaAggregator {
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &MediaAggregator{fetcher: fetcher, logger: logger}
}

// WithRand makes shuffling use r, for reproducible orderings.
func (a *MediaAggregator) WithRand(r *rand.Rand) *MediaAggregator {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rng = r
	return a
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (a *MediaAggregator) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// intN returns a uniform integer in [0, n) from the injected source, or the global one.
func (a *MediaAggregator) intN(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rng != nil {
		return a.rng.IntN(n)
	}
	return rand.IntN(n)
}
