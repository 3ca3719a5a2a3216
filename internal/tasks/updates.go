package tasks

import (
	"fmt"
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

// Operation phase enumeration
type Phase int

const (
	ResolveChannels Phase = iota
	FetchChannel
	ShuffleMedia
	ExportSession
)

func (p Phase) String() string {
	switch p {
	case ResolveChannels:
		return "resolve_channels"
	case FetchChannel:
		return "fetch_channel"
	case ShuffleMedia:
		return "shuffle_media"
	case ExportSession:
		return "export_session"
	default:
		return ""
	}
}

// ChannelResult is attached to [FetchChannel] updates.
type ChannelResult struct {
	Channel string
	Count   int
	Failed  bool
}

func resolveChannelsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveChannels,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Fetching media from %d channel(s)...", total),
	}
}

func fetchChannelUpdate(step, total int, res ChannelResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] r/%s: %d item(s)", step, total, res.Channel, res.Count)
	if res.Failed {
		msg = fmt.Sprintf("[%d/%d] r/%s: failed", step, total, res.Channel)
	}
	return ProgressUpdate{
		Phase:   FetchChannel,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func shuffleUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ShuffleMedia,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Shuffled %d item(s)", count),
	}
}

func exportingSessionUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportSession,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving: %s...", step, total, title),
	}
}

func exportCompletedUpdate(step, total int, title string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportSession,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d item(s))", step, total, title, count),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportSession,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}
