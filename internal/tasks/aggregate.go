package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
)

// Aggregate launches one fetch per channel concurrently and waits for all of them.
//
// A channel that fails or panics contributes nothing; the others are unaffected.
// The concatenated result is Fisher–Yates shuffled. No deduplication is performed.
// Empty input returns an empty slice without calling the fetcher.
func (a *MediaAggregator) Aggregate(ctx context.Context, channels []string, perChannelLimit int, progress chan<- ProgressUpdate) []string {
	if len(channels) == 0 {
		return []string{}
	}

	total := len(channels)
	a.sendProgress(progress, resolveChannelsUpdate(total))

	contributions := make([][]string, total)
	done := make(chan ChannelResult, total)

	var wg sync.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			media, failed := a.fetchChannel(ctx, channel, perChannelLimit)
			contributions[i] = media
			done <- ChannelResult{Channel: models.NormalizeChannel(channel), Count: len(media), Failed: failed}
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	step := 0
	for res := range done {
		step++
		a.sendProgress(progress, fetchChannelUpdate(step, total, res))
	}

	size := 0
	for _, c := range contributions {
		size += len(c)
	}

	media := make([]string, 0, size)
	for _, c := range contributions {
		media = append(media, c...)
	}

	a.shuffle(media)
	a.sendProgress(progress, shuffleUpdate(len(media)))
	return media
}

// fetchChannel isolates a single channel fetch, converting a panic into an empty contribution.
func (a *MediaAggregator) fetchChannel(ctx context.Context, channel string, limit int) (media []string, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("channel fetch panicked", "channel", channel, "panic", r)
			media, failed = nil, true
		}
	}()
	return a.fetcher.FetchChannelMedia(ctx, channel, limit), false
}

// shuffle permutes media in place: for i from len-1 down to 1, swap i with a uniform j in [0, i].
func (a *MediaAggregator) shuffle(media []string) {
	for i := len(media) - 1; i > 0; i-- {
		j := a.intN(i + 1)
		media[i], media[j] = media[j], media[i]
	}
}

// ResolveSession aggregates the session's channels. An empty result is reported as [shared.ErrNoMedia]
// so callers can offer a retry that re-runs the whole aggregate.
func (a *MediaAggregator) ResolveSession(ctx context.Context, session *models.Session, limit int, progress chan<- ProgressUpdate) ([]string, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSessionLimit
	}

	media := a.Aggregate(ctx, session.Channels, limit, progress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("%w for session %q", shared.ErrNoMedia, session.Title)
	}

	a.logger.Info("resolved session media", "session", session.ID, "channels", len(session.Channels), "media", len(media))
	return media, nil
}
