package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/joip/internal/formatter"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
	"github.com/urfave/cli/v3"
)

// SessionsList prints saved sessions in the requested format.
func (r *Runner) SessionsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if cmd.Bool("favorites") {
		criteria["is_favorite"] = true
	}
	if cmd.Bool("public") {
		criteria["is_public"] = true
	}

	sessions, err := r.sessions.ListBy(criteria)
	if err != nil {
		return err
	}

	switch format := cmd.String("format"); format {
	case formatter.FormatJSON:
		return r.writeJSON(sessions, true)
	case formatter.FormatCSV:
		data, err := formatter.SessionsToCSV(sessions)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case formatter.FormatMarkdown, "md":
		return r.writePlain("%s", formatter.SessionsToMarkdown(sessions))
	case formatter.FormatText, "":
		return r.writePlain("%s", formatter.SessionsToText(sessions))
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// SessionsCreate saves a new session built from flags.
func (r *Runner) SessionsCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	transition, err := models.ParseTransition(cmd.String("transition"))
	if err != nil {
		return err
	}

	session := models.NewSession(cmd.String("title"), models.ParseChannels(cmd.String("channels")))
	session.Interval = cmd.Int("interval")
	session.Transition = transition
	session.IsPublic = cmd.Bool("public")
	session.IsFavorite = cmd.Bool("favorite")
	if prompt := cmd.String("prompt"); prompt != "" {
		session.CaptionPrompt = prompt
	}

	if cmd.Bool("validate") {
		if err := r.validateChannels(ctx, session.Channels); err != nil {
			return err
		}
	}

	if err := r.sessions.Create(session); err != nil {
		return err
	}
	r.logger.Info("session created", "id", session.ID, "channels", len(session.Channels))

	if cmd.Bool("json") {
		return r.writeJSON(session, true)
	}
	r.writePlain("✓ Created session %s\n", session.ID)
	return r.writePlain("%s", formatter.SessionDetail(session, r.shareBase()))
}

// SessionsShow prints one session.
func (r *Runner) SessionsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	session, err := r.sessionArg(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(session, true)
	}
	return r.writePlain("%s", formatter.SessionDetail(session, r.shareBase()))
}

// SessionsUpdate applies the flags that were set to an existing session.
func (r *Runner) SessionsUpdate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	var patch models.SessionPatch
	if cmd.IsSet("title") {
		title := cmd.String("title")
		patch.Title = &title
	}
	if cmd.IsSet("channels") {
		patch.Channels = models.ParseChannels(cmd.String("channels"))
		if cmd.Bool("validate") {
			if err := r.validateChannels(ctx, patch.Channels); err != nil {
				return err
			}
		}
	}
	if cmd.IsSet("interval") {
		interval := cmd.Int("interval")
		patch.Interval = &interval
	}
	if cmd.IsSet("transition") {
		transition, err := models.ParseTransition(cmd.String("transition"))
		if err != nil {
			return err
		}
		patch.Transition = &transition
	}
	if cmd.IsSet("prompt") {
		prompt := cmd.String("prompt")
		patch.CaptionPrompt = &prompt
	}
	if cmd.IsSet("public") {
		public := cmd.Bool("public")
		patch.IsPublic = &public
	}

	session, err := r.sessions.Update(id, patch)
	if err != nil {
		return err
	}
	r.logger.Info("session updated", "id", id)
	return r.writePlain("%s", formatter.SessionDetail(session, r.shareBase()))
}

// SessionsDelete removes a session.
func (r *Runner) SessionsDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	ok, err := r.sessions.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return r.writePlain("✓ Deleted session %s\n", id)
}

// SessionsFavorite marks or unmarks a session as a favorite.
func (r *Runner) SessionsFavorite(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	favorite := !cmd.Bool("off")
	ok, err := r.sessions.SetFavorite(id, favorite)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}

	if favorite {
		return r.writePlain("★ Session %s is a favorite\n", id)
	}
	return r.writePlain("Session %s is no longer a favorite\n", id)
}

// SessionsExport writes sessions as a YAML file, or to stdout when no output is given.
func (r *Runner) SessionsExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	sessions, err := r.selectSessions(cmd.Args().Slice())
	if err != nil {
		return err
	}

	data, err := formatter.SessionsToYAML(sessions)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" || output == "-" {
		return r.writePlain("%s", data)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	r.logger.Info("sessions exported", "count", len(sessions), "path", output)
	return r.writePlain("✓ Exported %d session(s) to %s\n", len(sessions), output)
}

// SessionsImport reads a YAML sessions file and saves every entry as a new session.
func (r *Runner) SessionsImport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to a sessions file", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	sessions, err := formatter.SessionsFromYAML(data)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		s.ID = ""
	}

	if err := r.sessions.Import(sessions); err != nil {
		return err
	}

	r.logger.Info("sessions imported", "count", len(sessions), "path", path)
	r.writePlain("✓ Imported %d session(s)\n", len(sessions))
	for _, s := range sessions {
		r.writePlain("  %s  %s\n", s.ID, s.Title)
	}
	return nil
}

// sessionArg loads the session named by the id argument.
func (r *Runner) sessionArg(cmd *cli.Command) (*models.Session, error) {
	id := cmd.StringArg("id")
	if id == "" {
		return nil, fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}
	return r.sessions.Get(id)
}

// selectSessions returns the sessions with the given ids, or all of them when ids is empty.
func (r *Runner) selectSessions(ids []string) ([]*models.Session, error) {
	if len(ids) == 0 {
		return r.sessions.List()
	}

	sessions := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.sessions.Get(id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// validateChannels fails with the names of channels Reddit does not know.
func (r *Runner) validateChannels(ctx context.Context, channels []string) error {
	if r.validator == nil {
		return fmt.Errorf("%w: Reddit client not initialized", shared.ErrServiceUnavailable)
	}

	var invalid []string
	for _, ch := range channels {
		ok, err := r.validator.ValidateChannel(ctx, ch)
		if err != nil {
			return err
		}
		if !ok {
			invalid = append(invalid, "r/"+ch)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: unknown channel(s) %s", shared.ErrInvalidInput, strings.Join(invalid, ", "))
	}
	return nil
}

// shareBase is the public base URL of the API server.
func (r *Runner) shareBase() string {
	host := r.config.Server.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, r.config.Server.Port)
}
