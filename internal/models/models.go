package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/joip/internal/shared"
)

const (
	DefaultInterval = 10
	MinInterval     = 1
	MaxInterval     = 60

	DefaultCaptionPrompt = "You are a witty commentator for a slideshow. Given an image from Reddit, " +
		"provide a short, insightful, and sometimes humorous caption. Keep it concise (2-3 sentences maximum) and engaging."
)

// TransitionMode selects the visual effect between slides. It carries no timing semantics.
type TransitionMode string

const (
	TransitionFade  TransitionMode = "fade"
	TransitionSlide TransitionMode = "slide"
	TransitionZoom  TransitionMode = "zoom"
	TransitionNone  TransitionMode = "none"
)

// TransitionModes lists every supported mode in display order.
var TransitionModes = []TransitionMode{TransitionFade, TransitionSlide, TransitionZoom, TransitionNone}

// ParseTransition resolves s (case-insensitive) to a [TransitionMode]. Empty input yields the default, fade.
func ParseTransition(s string) (TransitionMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TransitionFade, nil
	}
	for _, m := range TransitionModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown transition %q", shared.ErrInvalidInput, s)
}

func (m TransitionMode) String() string { return string(m) }

// Session is a persisted slideshow configuration.
type Session struct {
	ID            string         `json:"id" yaml:"id,omitempty"`
	Sequence      int            `json:"-" yaml:"-"`
	Title         string         `json:"title" yaml:"title"`
	Thumbnail     string         `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Channels      []string       `json:"channels" yaml:"channels"`
	Interval      int            `json:"interval_seconds" yaml:"interval_seconds"`
	Transition    TransitionMode `json:"transition" yaml:"transition"`
	CaptionPrompt string         `json:"caption_prompt,omitempty" yaml:"caption_prompt,omitempty"`
	IsFavorite    bool           `json:"is_favorite" yaml:"is_favorite"`
	IsPublic      bool           `json:"is_public" yaml:"is_public"`
	UserID        string         `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time      `json:"updated_at" yaml:"-"`
}

// NewSession builds a session with defaults applied for interval, transition and caption prompt.
func NewSession(title string, channels []string) *Session {
	return &Session{
		Title:         title,
		Channels:      channels,
		Interval:      DefaultInterval,
		Transition:    TransitionFade,
		CaptionPrompt: DefaultCaptionPrompt,
	}
}

// ApplyDefaults fills zero-valued interval and transition.
func (s *Session) ApplyDefaults() {
	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}
	if s.Transition == "" {
		s.Transition = TransitionFade
	}
}

// Validate checks the session's fields, returning an error wrapping [shared.ErrInvalidInput].
func (s *Session) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	if len(s.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", shared.ErrInvalidInput)
	}
	for _, ch := range s.Channels {
		if NormalizeChannel(ch) == "" {
			return fmt.Errorf("%w: empty channel name", shared.ErrInvalidInput)
		}
	}
	if s.Interval < MinInterval || s.Interval > MaxInterval {
		return fmt.Errorf("%w: interval must be between %d and %d seconds, got %d", shared.ErrInvalidInput, MinInterval, MaxInterval, s.Interval)
	}
	if _, err := ParseTransition(string(s.Transition)); err != nil {
		return err
	}
	return nil
}

// IntervalDuration returns the slide interval as a [time.Duration].
func (s *Session) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// ShareURL returns the public link for the session under base, or "" when the session is private.
func (s *Session) ShareURL(base string) string {
	if !s.IsPublic || s.ID == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/shared/" + s.ID
}

// SessionPatch carries the fields of a partial update. Nil fields are left untouched.
type SessionPatch struct {
	Title         *string         `json:"title,omitempty"`
	Thumbnail     *string         `json:"thumbnail,omitempty"`
	Channels      []string        `json:"channels,omitempty"`
	Interval      *int            `json:"interval_seconds,omitempty"`
	Transition    *TransitionMode `json:"transition,omitempty"`
	CaptionPrompt *string         `json:"caption_prompt,omitempty"`
	IsFavorite    *bool           `json:"is_favorite,omitempty"`
	IsPublic      *bool           `json:"is_public,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return p.Title == nil && p.Thumbnail == nil && p.Channels == nil && p.Interval == nil &&
		p.Transition == nil && p.CaptionPrompt == nil && p.IsFavorite == nil && p.IsPublic == nil
}

// Apply copies the set fields of p onto s.
func (p SessionPatch) Apply(s *Session) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Thumbnail != nil {
		s.Thumbnail = *p.Thumbnail
	}
	if p.Channels != nil {
		s.Channels = p.Channels
	}
	if p.Interval != nil {
		s.Interval = *p.Interval
	}
	if p.Transition != nil {
		s.Transition = *p.Transition
	}
	if p.CaptionPrompt != nil {
		s.CaptionPrompt = *p.CaptionPrompt
	}
	if p.IsFavorite != nil {
		s.IsFavorite = *p.IsFavorite
	}
	if p.IsPublic != nil {
		s.IsPublic = *p.IsPublic
	}
}
