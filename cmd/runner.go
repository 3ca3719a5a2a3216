package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/repositories"
	"github.com/desertthunder/joip/internal/services"
	"github.com/desertthunder/joip/internal/shared"
	"github.com/desertthunder/joip/internal/slideshow"
	"github.com/desertthunder/joip/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	sessions   *repositories.SessionRepository
	tokens     *services.TokenCache
	auth       *services.RedditAuth
	fetcher    services.MediaFetcher
	validator  services.ChannelValidator
	aggregator *tasks.MediaAggregator
	captioner  slideshow.Captioner
	loader     slideshow.Loader
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Fetcher, Validator, Captioner and Loader default to implementations built from Config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB
	Fetcher    services.MediaFetcher
	Validator  services.ChannelValidator
	Captioner  slideshow.Captioner
	Loader     slideshow.Loader
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		fetcher:    opts.Fetcher,
		validator:  opts.Validator,
		captioner:  opts.Captioner,
		loader:     opts.Loader,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.wire()
	return r
}

// wire builds the storage, auth and Reddit layers that were not injected.
func (r *Runner) wire() {
	cfg := r.config.Reddit

	if r.db != nil {
		r.sessions = repositories.NewSessionRepository(r.db)
		r.tokens = services.NewTokenCache(services.TokenCacheOpts{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Store:        repositories.NewCredentialRepository(r.db),
			Logger:       shared.WithLogger(r.logger, "component", "tokens"),
		})
		r.auth = services.NewRedditAuth(services.RedditAuthOpts{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			AuthURL:      cfg.AuthURL,
			TokenURL:     cfg.TokenURL,
		}, r.tokens)

		if r.fetcher == nil || r.validator == nil {
			reddit := services.NewRedditService(services.RedditOpts{
				BaseURL:           cfg.APIBase,
				UserAgent:         cfg.UserAgent,
				Credentials:       r.tokens,
				RequestsPerSecond: cfg.RequestsPerSecond,
				Burst:             cfg.Burst,
				Logger:            shared.WithLogger(r.logger, "component", "reddit"),
			})
			if r.fetcher == nil {
				r.fetcher = reddit
			}
			if r.validator == nil {
				r.validator = reddit
			}
		}
	}

	if r.fetcher != nil {
		r.aggregator = tasks.NewMediaAggregator(r.fetcher, shared.WithLogger(r.logger, "component", "aggregator"))
	}

	if r.captioner == nil {
		if endpoint := r.config.Player.CaptionsEndpoint; endpoint != "" {
			r.captioner = services.NewHTTPCaptioner(endpoint, "", &http.Client{Timeout: 30 * time.Second})
		} else {
			r.captioner = services.NewCannedCaptioner()
		}
	}
	if r.loader == nil {
		r.loader = services.NewImageLoader(nil, cfg.UserAgent, shared.WithLogger(r.logger, "component", "loader"))
	}
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, sessionsCommand, mediaCommand, playCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireStore fails when the runner was built without a database.
func (r *Runner) requireStore() error {
	if r.sessions == nil {
		return fmt.Errorf("%w: database not initialized (run 'joip setup database')", shared.ErrServiceUnavailable)
	}
	return nil
}

// requireReddit fails when no media source is available.
func (r *Runner) requireReddit() error {
	if r.aggregator == nil || r.validator == nil {
		return fmt.Errorf("%w: Reddit client not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
