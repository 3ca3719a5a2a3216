package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/slideshow"
	"github.com/desertthunder/joip/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSessionsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgMediaResolved
	MsgEngineState
)

type sessionsPayload struct {
	sessions []*models.Session
	err      error
}

type resolvedPayload struct {
	attempt int
	media   []string
	err     error
}

type statePayload struct {
	play  int
	state slideshow.State
}

// sessionsLoadedMsg is the constructor for [MsgSessionsLoaded]
func sessionsLoadedMsg(sessions []*models.Session, err error) Msg {
	return Msg{kind: MsgSessionsLoaded, data: sessionsPayload{sessions, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// mediaResolvedMsg is the constructor for [MsgMediaResolved]
func mediaResolvedMsg(attempt int, media []string, err error) Msg {
	return Msg{kind: MsgMediaResolved, data: resolvedPayload{attempt, media, err}}
}

// engineStateMsg is the constructor for [MsgEngineState]
func engineStateMsg(play int, state slideshow.State) Msg {
	return Msg{kind: MsgEngineState, data: statePayload{play, state}}
}
