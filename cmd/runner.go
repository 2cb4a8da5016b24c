package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scout/internal/auth"
	"github.com/desertthunder/scout/internal/client"
	"github.com/desertthunder/scout/internal/history"
	"github.com/desertthunder/scout/internal/research"
	"github.com/desertthunder/scout/internal/shared"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	creds      *auth.Store
	custodian  *auth.Custodian
	api        *client.Client
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	historyDB  *history.Store
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration. It loads
// any persisted credential pair and wires the custodian's persistence hooks
// so refreshed or revoked credentials reach disk.
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
		opts.HTTPClient = &http.Client{Timeout: opts.Config.Backend.RequestTimeout()}
	}

	creds := auth.NewStore()
	credsPath := shared.ExpandPath(opts.Config.Session.CredentialsPath)
	if credsPath != "" {
		if token, err := auth.LoadCredentials(credsPath); err != nil {
			opts.Logger.Warn("failed to load saved credentials", "path", credsPath, "error", err)
		} else if token != nil {
			creds.Set(token)
		}
	}

	custodian := auth.NewCustodian(creds,
		auth.NewRefreshFunc(opts.Config.Backend.BaseURL, opts.HTTPClient), opts.Logger)
	if credsPath != "" {
		custodian.SetOnRefresh(func(token *oauth2.Token) {
			if err := auth.SaveCredentials(credsPath, token); err != nil {
				opts.Logger.Warn("failed to persist refreshed credentials", "error", err)
			}
		})
		custodian.SetOnSessionEnd(func() {
			if err := auth.ClearCredentials(credsPath); err != nil {
				opts.Logger.Warn("failed to clear saved credentials", "error", err)
			}
			opts.Logger.Warn("session ended, sign in again with 'scout auth login'")
		})
	}

	api := client.New(opts.Config.Backend.BaseURL, opts.HTTPClient, creds, custodian, opts.Logger)
	api.SetDemoMode(opts.Config.Backend.DemoMode)

	return &Runner{
		config:     opts.Config,
		creds:      creds,
		custodian:  custodian,
		api:        api,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger, used when the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// openHistory lazily opens the local history database.
func (r *Runner) openHistory() (*history.Store, error) {
	if r.historyDB != nil {
		return r.historyDB, nil
	}

	db, err := shared.NewDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}

	store, err := history.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.historyDB = store
	return store, nil
}

// controller builds the lifecycle controller, attaching history when the
// local database is usable. A broken history database degrades to running
// without a record rather than blocking research.
func (r *Runner) controller() *research.Controller {
	var recorder research.Recorder
	if store, err := r.openHistory(); err != nil {
		r.logger.Warn("history unavailable, continuing without local record", "error", err)
	} else {
		recorder = store
	}

	ctrl := research.NewController(r.api, recorder, r.logger)
	ctrl.SetPollInterval(r.config.Backend.PollInterval())
	return ctrl
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
