package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/joip/internal/models"
)

var (
	_ list.Item = sessionItem{}
)

// sessionItem wraps [models.Session] to implement [list.Item].
type sessionItem struct {
	session *models.Session
}

func (i sessionItem) FilterValue() string {
	return i.session.Title + " " + strings.Join(i.session.Channels, " ")
}

func (i sessionItem) Title() string {
	if i.session.IsFavorite {
		return "★ " + i.session.Title
	}
	return i.session.Title
}

func (i sessionItem) Description() string {
	channels := make([]string, len(i.session.Channels))
	for n, ch := range i.session.Channels {
		channels[n] = "r/" + ch
	}
	return fmt.Sprintf("%s • %ds • %s", strings.Join(channels, ", "), i.session.Interval, i.session.Transition)
}
