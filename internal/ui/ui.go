package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
	"github.com/desertthunder/joip/internal/slideshow"
	"github.com/desertthunder/joip/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SessionListView ViewState = iota
	LoadingView
	PlayerView
	ErrorView
)

// SessionLister lists saved sessions.
type SessionLister interface {
	List() ([]*models.Session, error)
}

// MediaResolver aggregates a session's channels into a playable list.
type MediaResolver interface {
	ResolveSession(ctx context.Context, session *models.Session, limit int, progress chan<- tasks.ProgressUpdate) ([]string, error)
}

// EngineFactory builds a slideshow engine for a session and its media.
type EngineFactory func(session *models.Session, media []string) *slideshow.Engine

// ModelOpts configures a [Model].
type ModelOpts struct {
	Sessions  SessionLister
	Resolver  MediaResolver
	NewEngine EngineFactory
	Limit     int             // Per-channel listing size
	Session   *models.Session // Skips the picker and plays this session directly
	Logger    *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	sessions  SessionLister
	resolver  MediaResolver
	newEngine EngineFactory
	limit     int
	logger    *log.Logger
	width     int
	height    int

	sessionList list.Model
	listReady   bool
	selected    *models.Session

	attempt      int
	progressChan chan tasks.ProgressUpdate
	resolveDone  chan Msg
	progress     tasks.ProgressUpdate

	play       int
	engine     *slideshow.Engine
	playCtx    context.Context
	stopEngine context.CancelFunc
	state      slideshow.State

	err  error
	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.NewEngine == nil {
		opts.NewEngine = func(s *models.Session, media []string) *slideshow.Engine {
			return slideshow.FromSession(s, media, slideshow.Options{Logger: opts.Logger})
		}
	}

	m := &Model{
		ctx:       ctx,
		view:      SessionListView,
		sessions:  opts.Sessions,
		resolver:  opts.Resolver,
		newEngine: opts.NewEngine,
		limit:     opts.Limit,
		logger:    opts.Logger,
		selected:  opts.Session,
		help:      help.New(),
		keys:      newKeyMap(),
	}
	if m.selected != nil {
		m.view = LoadingView
	}
	return m
}

// Init loads the session list, or starts aggregation when a session was preselected.
func (m *Model) Init() tea.Cmd {
	if m.selected != nil {
		return m.startResolve()
	}
	return m.fetchSessions()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.listReady {
			m.sessionList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SessionListView:
			return m.handleListKeys(msg)
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, m.quit()
			}
			return m, nil
		case PlayerView:
			return m.handlePlayerKeys(msg)
		case ErrorView:
			return m.handleErrorKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionsLoaded:
		data := msg.data.(sessionsPayload)
		if data.err != nil {
			m.err = data.err
			m.view = ErrorView
			return m, nil
		}
		items := make([]list.Item, len(data.sessions))
		for i, s := range data.sessions {
			items[i] = sessionItem{session: s}
		}
		m.sessionList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.sessionList.Title = "Sessions"
		m.sessionList.SetSize(m.width-4, m.height-8)
		m.listReady = true
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgMediaResolved:
		data := msg.data.(resolvedPayload)
		if data.attempt != m.attempt || m.view != LoadingView {
			return m, nil
		}
		m.progressChan, m.resolveDone = nil, nil
		if data.err != nil {
			m.logger.Warn("media aggregation failed", "session", m.selected.ID, "error", data.err)
			m.err = data.err
			m.view = ErrorView
			return m, nil
		}
		return m, m.startPlayback(data.media)

	case MsgEngineState:
		data := msg.data.(statePayload)
		if data.play != m.play || m.engine == nil {
			return m, nil
		}
		m.state = data.state
		return m, m.waitForState()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SessionListView:
		return m.renderSessionList()
	case LoadingView:
		return m.renderLoading()
	case PlayerView:
		return m.renderPlayer()
	case ErrorView:
		return m.renderError()
	default:
		return ""
	}
}

// ViewState returns the current view.
func (m *Model) ViewState() ViewState { return m.view }

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.listReady && m.sessionList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.enter):
		if !m.listReady {
			return m, nil
		}
		if item, ok := m.sessionList.SelectedItem().(sessionItem); ok {
			m.selected = item.session
			m.view = LoadingView
			return m, m.startResolve()
		}
		return m, nil
	}
	return m.updateList(msg)
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.back):
		m.stopPlayback()
		m.view = SessionListView
		if m.listReady {
			return m, nil
		}
		return m, m.fetchSessions()
	case key.Matches(msg, m.keys.pause):
		if m.state.Paused {
			m.engine.Resume()
		} else {
			m.engine.Pause()
		}
		m.state = m.engine.State()
	case key.Matches(msg, m.keys.next):
		m.engine.Next()
		m.state = m.engine.State()
	}
	return m, nil
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.retry):
		if m.selected == nil {
			m.err = nil
			m.view = SessionListView
			return m, m.fetchSessions()
		}
		m.err = nil
		m.view = LoadingView
		return m, m.startResolve()
	case key.Matches(msg, m.keys.back):
		m.err = nil
		m.view = SessionListView
		if !m.listReady {
			return m, m.fetchSessions()
		}
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != SessionListView || !m.listReady {
		return m, nil
	}
	var cmd tea.Cmd
	m.sessionList, cmd = m.sessionList.Update(msg)
	return m, cmd
}

func (m *Model) quit() tea.Cmd {
	m.stopPlayback()
	return tea.Quit
}

func (m *Model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.sessions.List()
		return sessionsLoadedMsg(sessions, err)
	}
}

// startResolve aggregates the selected session in the background. Each attempt is numbered so a
// result from an abandoned attempt is ignored.
func (m *Model) startResolve() tea.Cmd {
	m.attempt++
	m.progress = tasks.ProgressUpdate{}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.resolveDone = make(chan Msg, 1)

	attempt, session, limit := m.attempt, m.selected, m.limit
	progress, done := m.progressChan, m.resolveDone
	go func() {
		media, err := m.resolver.ResolveSession(m.ctx, session, limit, progress)
		done <- mediaResolvedMsg(attempt, media, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.resolveDone
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-progress:
			return progressUpdateMsg(update)
		case msg := <-done:
			return msg
		}
	}
}

func (m *Model) startPlayback(media []string) tea.Cmd {
	m.play++
	m.engine = m.newEngine(m.selected, media)

	ctx, cancel := context.WithCancel(m.ctx)
	if err := m.engine.Start(ctx); err != nil {
		cancel()
		m.engine = nil
		m.err = err
		m.view = ErrorView
		return nil
	}
	m.playCtx, m.stopEngine = ctx, cancel
	m.state = m.engine.State()
	m.view = PlayerView
	m.logger.Info("playback started", "session", m.selected.ID, "media", len(media))
	return m.waitForState()
}

func (m *Model) stopPlayback() {
	if m.stopEngine != nil {
		m.stopEngine()
		m.playCtx, m.stopEngine = nil, nil
	}
	if m.engine != nil {
		m.engine.Reset()
		m.engine = nil
	}
	m.state = slideshow.State{}
}

// waitForState reads one snapshot from the running engine, giving up when playback stops.
func (m *Model) waitForState() tea.Cmd {
	if m.engine == nil || m.playCtx == nil {
		return nil
	}
	play, updates, done := m.play, m.engine.Updates(), m.playCtx.Done()
	return func() tea.Msg {
		select {
		case state := <-updates:
			return engineStateMsg(play, state)
		case <-done:
			return nil
		}
	}
}

func (m *Model) renderSessionList() string {
	if !m.listReady {
		return "Loading sessions..."
	}
	if len(m.sessionList.Items()) == 0 {
		return fmt.Sprintf("%s\n\nNo sessions yet. Create one with `joip sessions create`.\n\n%s",
			styles.title.Render("Sessions"), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.sessionList.View(), helpView)
}

func (m *Model) renderLoading() string {
	title := styles.title.Render(fmt.Sprintf("Loading '%s'", m.selected.Title))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchChannel:
		phase = fmt.Sprintf("Fetching channels (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.ShuffleMedia:
		phase = "Shuffling media..."
	default:
		phase = "Resolving channels..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderPlayer() string {
	s := m.state
	title := styles.title.Render(fmt.Sprintf("%s  [%d/%d]", m.selected.Title, s.Index+1, s.Len))

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(s.URL)
	b.WriteString("\n\n")

	switch {
	case s.Caption != "":
		b.WriteString(styles.caption.Render(s.Caption))
	case s.ImageReady:
		b.WriteString(styles.help.Render("  captioning..."))
	default:
		b.WriteString(styles.help.Render("  loading image..."))
	}
	b.WriteString("\n\n")

	status := styles.ok.Render("▶ playing")
	if s.Paused {
		status = styles.warn.Render("⏸ paused")
	}
	fmt.Fprintf(&b, "%s • every %ds • %s\n\n", status, m.selected.Interval, s.Transition)

	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.pause, m.keys.next, m.keys.back, m.keys.quit}))
	return b.String()
}

func (m *Model) renderError() string {
	if errors.Is(m.err, shared.ErrNoMedia) {
		return fmt.Sprintf("%s\n\nNo images were found in the selected channels.\n\n%s",
			styles.err.Render("No media"),
			m.help.ShortHelpView([]key.Binding{m.keys.retry, m.keys.back, m.keys.quit}))
	}
	return fmt.Sprintf("%s\n\n%s",
		styles.err.Render(fmt.Sprintf("Error: %v", m.err)),
		m.help.ShortHelpView([]key.Binding{m.keys.retry, m.keys.back, m.keys.quit}))
}
