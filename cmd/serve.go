package main

import (
	"context"
	"net/http"

	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/server"
	"github.com/desertthunder/joip/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireReddit(); err != nil {
		return err
	}

	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("api-key") {
		cfg.APIKey = cmd.String("api-key")
	}
	if cfg.APIKey == "" {
		r.logger.Warn("no API key configured; /api routes are open", "env", shared.EnvServerAPIKey)
	}

	handler := r.apiRouter(cfg)
	srv := server.New(cfg, handler, shared.WithLogger(r.logger, "component", "server"))
	r.writePlain("→ Serving on http://%s\n", server.Addr(cfg))
	return srv.Run(ctx)
}

// apiRouter assembles the middleware stack and API routes.
func (r *Runner) apiRouter(cfg shared.ServerConfig) http.Handler {
	logger := shared.WithLogger(r.logger, "component", "api")

	router := server.NewBasicRouter()
	router.Use(server.Logging(logger), server.Recover(logger), server.RequireAPIKey(cfg.APIKey))

	server.NewAPIHandler(server.APIOpts{
		Sessions: r.sessions,
		Media: server.MediaResolverFunc(func(ctx context.Context, s *models.Session, limit int) ([]string, error) {
			return r.aggregator.ResolveSession(ctx, s, limit, nil)
		}),
		Channels:     r.validator,
		Logger:       logger,
		ShareBase:    "http://" + server.Addr(cfg),
		DefaultLimit: r.config.Player.DefaultLimit,
	}).Register(router)

	return router
}
