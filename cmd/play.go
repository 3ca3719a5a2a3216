package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
	"github.com/desertthunder/joip/internal/slideshow"
	"github.com/desertthunder/joip/internal/ui"
	"github.com/urfave/cli/v3"
)

// Play launches the terminal slideshow player, either on the session given as an argument or on a
// session picked from the list.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireReddit(); err != nil {
		return err
	}

	var session *models.Session
	if cmd.StringArg("id") != "" {
		s, err := r.sessionArg(cmd)
		if err != nil {
			return err
		}
		session = s
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Player.LogFile
	if logPath == "" {
		logPath = "./joip.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	captioner := r.captioner
	if cmd.Bool("no-captions") {
		captioner = nil
	}
	loadTimeout := r.config.Player.LoadTimeoutDuration()
	engineLogger := shared.WithLogger(fileLogger, "component", "slideshow")

	model := ui.NewModel(ctx, ui.ModelOpts{
		Sessions: r.sessions,
		Resolver: r.aggregator,
		Limit:    r.limit(cmd),
		Session:  session,
		Logger:   fileLogger,
		NewEngine: func(s *models.Session, media []string) *slideshow.Engine {
			return slideshow.FromSession(s, media, slideshow.Options{
				LoadTimeout: loadTimeout,
				Loader:      r.loader,
				Captioner:   captioner,
				Logger:      engineLogger,
			})
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
