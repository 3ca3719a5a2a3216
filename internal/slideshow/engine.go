package slideshow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
)

// DefaultLoadTimeout bounds the wait for the current image before the slot is treated as ready.
const DefaultLoadTimeout = 10 * time.Second

var errLoadTimeout = fmt.Errorf("%w: image load", shared.ErrTimeout)

// Phase is the engine's playback phase.
type Phase int

const (
	Idle Phase = iota
	Empty
	Ready
	Displaying
	Paused
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	case Displaying:
		return "displaying"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Loader fetches an image so it can be shown without delay.
type Loader interface {
	Load(ctx context.Context, url string) error
}

// Captioner produces a caption for the image at index.
type Captioner interface {
	Caption(ctx context.Context, index int, imageURL, prompt string) (string, error)
}

// State is an immutable snapshot of the engine.
type State struct {
	Phase      Phase
	Index      int
	Len        int
	URL        string
	Caption    string
	Paused     bool
	ImageReady bool
	Transition models.TransitionMode
}

// Options configures an [Engine]. Loader and Captioner are optional.
type Options struct {
	Interval      time.Duration
	Transition    models.TransitionMode
	CaptionPrompt string
	LoadTimeout   time.Duration
	Loader        Loader
	Captioner     Captioner
	Clock         Clock
	Logger        *log.Logger
}

// Engine is a cancellable, timer-driven slideshow state machine. It is safe for concurrent use.
type Engine struct {
	opts    Options
	logger  *log.Logger
	updates chan State

	mu         sync.Mutex
	media      []string
	phase      Phase
	index      int
	caption    string
	imageReady bool
	gen        uint64
	// advanceSeq identifies the armed advance timer; stopping or re-arming invalidates older callbacks.
	advanceSeq uint64

	runCtx     context.Context
	runCancel  context.CancelFunc
	slotCtx    context.Context
	slotCancel context.CancelFunc
	advance    Timer
	loadWait   Timer
}

// New creates an engine over media. An empty list yields an engine in the Empty phase.
func New(media []string, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = time.Duration(models.DefaultInterval) * time.Second
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Transition == "" {
		opts.Transition = models.TransitionFade
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	e := &Engine{
		opts:    opts,
		logger:  opts.Logger,
		updates: make(chan State, 16),
	}
	e.setMediaLocked(media)
	return e
}

// FromSession creates an engine with the session's interval, transition and caption prompt.
func FromSession(s *models.Session, media []string, opts Options) *Engine {
	opts.Interval = s.IntervalDuration()
	opts.Transition = s.Transition
	opts.CaptionPrompt = s.CaptionPrompt
	return New(media, opts)
}

// Updates returns the channel on which state snapshots are published. Slow readers miss intermediate
// states but always see the latest one.
func (e *Engine) Updates() <-chan State { return e.updates }

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Start begins playback from index 0. It fails with [shared.ErrNoMedia] for an Empty engine and with
// [shared.ErrInvalidInput] when playback is already running. Cancelling ctx tears the engine down.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case Empty:
		return shared.ErrNoMedia
	case Ready:
	default:
		return fmt.Errorf("%w: engine is %s", shared.ErrInvalidInput, e.phase)
	}

	run, cancel := context.WithCancel(ctx)
	e.runCtx, e.runCancel = run, cancel
	go func() {
		<-run.Done()
		if ctx.Err() != nil {
			e.teardown(run)
		}
	}()

	e.enterSlotLocked()
	return nil
}

// Pause freezes the index and caption and cancels the advance timer. It reports whether the engine
// was playing.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != Displaying && e.phase != Ready {
		return false
	}
	if e.phase == Ready && e.runCtx == nil {
		return false
	}

	e.stopAdvanceLocked()
	e.phase = Paused
	e.publishLocked()
	return true
}

// Resume continues playback. A fresh full interval is armed when the current image is ready; otherwise
// the timer is armed once it loads.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != Paused {
		return false
	}

	e.phase = Displaying
	if e.imageReady {
		e.armAdvanceLocked()
	}
	e.publishLocked()
	return true
}

// Next skips to the following index as if the timer had fired. A paused engine stays paused.
func (e *Engine) Next() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runCtx == nil || (e.phase != Displaying && e.phase != Paused && e.phase != Ready) {
		return false
	}
	e.advanceLocked()
	return true
}

// Reset tears playback down to Idle. In-flight loads and captions are cancelled and their late
// results ignored.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.publishLocked()
}

// SetMedia tears playback down and replaces the media list, moving to Ready (or Empty).
func (e *Engine) SetMedia(media []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.setMediaLocked(media)
	e.publishLocked()
}

func (e *Engine) setMediaLocked(media []string) {
	e.media = append([]string(nil), media...)
	e.index = 0
	if len(e.media) == 0 {
		e.phase = Empty
		return
	}
	e.phase = Ready
}

// teardown resets the engine when run is still the active playback context.
func (e *Engine) teardown(run context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != run {
		return
	}
	e.resetLocked()
	e.publishLocked()
}

func (e *Engine) resetLocked() {
	e.gen++
	e.stopAdvanceLocked()
	e.stopLoadWaitLocked()
	if e.slotCancel != nil {
		e.slotCancel()
	}
	e.slotCtx, e.slotCancel = nil, nil
	if e.runCancel != nil {
		e.runCancel()
	}
	e.runCtx, e.runCancel = nil, nil

	e.media = nil
	e.phase = Idle
	e.index = 0
	e.caption = ""
	e.imageReady = false
}

// advanceLocked moves to (index+1) mod len and begins loading the new slot.
func (e *Engine) advanceLocked() {
	e.stopAdvanceLocked()
	e.index = (e.index + 1) % len(e.media)
	if e.phase == Ready {
		e.phase = Displaying
	}
	e.enterSlotLocked()
}

// enterSlotLocked starts a new generation for the current index: any previous slot work is cancelled,
// the image load starts and the bounded wait is armed.
func (e *Engine) enterSlotLocked() {
	e.gen++
	gen := e.gen

	e.stopLoadWaitLocked()
	if e.slotCancel != nil {
		e.slotCancel()
	}

	slotCtx, cancel := context.WithCancel(e.runCtx)
	e.slotCtx, e.slotCancel = slotCtx, cancel

	e.imageReady = false
	e.caption = ""
	url := e.media[e.index]

	if e.opts.Loader == nil {
		e.onLoadedLocked(gen, nil)
		return
	}

	e.loadWait = e.opts.Clock.AfterFunc(e.opts.LoadTimeout, func() {
		e.onLoaded(gen, errLoadTimeout)
	})
	go func() {
		err := e.opts.Loader.Load(slotCtx, url)
		e.onLoaded(gen, err)
	}()
	e.publishLocked()
}

func (e *Engine) onLoaded(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLoadedLocked(gen, err)
}

// onLoadedLocked marks the slot ready exactly once per generation, whether the image loaded,
// failed, or timed out.
func (e *Engine) onLoadedLocked(gen uint64, err error) {
	if gen != e.gen || e.imageReady || e.runCtx == nil {
		return
	}

	e.stopLoadWaitLocked()
	if err != nil {
		e.logger.Warn("image not loaded, continuing", "index", e.index, "url", e.media[e.index], "error", err)
	}

	e.imageReady = true
	if e.phase == Ready {
		e.phase = Displaying
	}

	e.requestCaptionLocked(gen)
	e.preloadSuccessorLocked()
	if e.phase == Displaying {
		e.armAdvanceLocked()
	}
	e.publishLocked()
}

func (e *Engine) requestCaptionLocked(gen uint64) {
	if e.opts.Captioner == nil {
		return
	}

	index, url, prompt := e.index, e.media[e.index], e.opts.CaptionPrompt
	slotCtx := e.slotCtx
	go func() {
		caption, err := e.opts.Captioner.Caption(slotCtx, index, url, prompt)
		e.onCaption(gen, caption, err)
	}()
}

func (e *Engine) onCaption(gen uint64, caption string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		return
	}
	if err != nil {
		e.logger.Warn("caption unavailable", "index", e.index, "error", err)
		return
	}
	e.caption = caption
	e.publishLocked()
}

func (e *Engine) preloadSuccessorLocked() {
	if e.opts.Loader == nil || len(e.media) < 2 {
		return
	}

	next := e.media[(e.index+1)%len(e.media)]
	slotCtx := e.slotCtx
	go func() {
		if err := e.opts.Loader.Load(slotCtx, next); err != nil && slotCtx.Err() == nil {
			e.logger.Debug("preload failed", "url", next, "error", err)
		}
	}()
}

func (e *Engine) armAdvanceLocked() {
	e.stopAdvanceLocked()
	gen, seq := e.gen, e.advanceSeq
	e.advance = e.opts.Clock.AfterFunc(e.opts.Interval, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen || seq != e.advanceSeq || e.phase != Displaying {
			return
		}
		e.advanceLocked()
	})
}

func (e *Engine) stopAdvanceLocked() {
	e.advanceSeq++
	if e.advance != nil {
		e.advance.Stop()
		e.advance = nil
	}
}

func (e *Engine) stopLoadWaitLocked() {
	if e.loadWait != nil {
		e.loadWait.Stop()
		e.loadWait = nil
	}
}

func (e *Engine) snapshotLocked() State {
	st := State{
		Phase:      e.phase,
		Index:      e.index,
		Len:        len(e.media),
		Caption:    e.caption,
		Paused:     e.phase == Paused,
		ImageReady: e.imageReady,
		Transition: e.opts.Transition,
	}
	if e.index < len(e.media) {
		st.URL = e.media[e.index]
	}
	return st
}

// publishLocked sends the latest snapshot without blocking, evicting the oldest queued one when full.
func (e *Engine) publishLocked() {
	st := e.snapshotLocked()
	select {
	case e.updates <- st:
		return
	default:
	}
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- st:
	default:
	}
}
