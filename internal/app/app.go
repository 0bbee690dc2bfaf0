// Package app assembles the pipeline from configuration and exposes
// the operations the command layer calls.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/peytonb/inboxtasks/internal/credential"
	"github.com/peytonb/inboxtasks/internal/ingest"
	"github.com/peytonb/inboxtasks/internal/model"
	"github.com/peytonb/inboxtasks/internal/poll"
	imapsource "github.com/peytonb/inboxtasks/internal/source/imap"
	"github.com/peytonb/inboxtasks/internal/store"
	"github.com/peytonb/inboxtasks/internal/summarize"
	"github.com/peytonb/inboxtasks/internal/sweep"
)

// App owns every long-lived component: store, mailbox source,
// summarizer, pipeline, poll controller, and retention sweeper.
type App struct {
	cfg        *model.Config
	log        *zap.SugaredLogger
	store      store.Store
	summarizer summarize.Summarizer
	pipeline   *ingest.Pipeline
	controller *poll.Controller
	sweeper    *sweep.Sweeper
}

// New builds the application from a validated configuration. Secrets
// absent from the file are pulled from the OS keyring.
func New(cfg *model.Config, log *zap.SugaredLogger) (*App, error) {
	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.App.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	src := imapsource.NewAdapter(
		cfg.IMAP.Host,
		cfg.IMAP.Port,
		cfg.IMAP.Username,
		cfg.IMAP.Password,
		cfg.IMAP.TLS,
		cfg.IMAP.Folder,
	)

	var summarizer summarize.Summarizer
	if cfg.AI.Enabled {
		summarizer = summarize.NewOpenAIClient(
			cfg.AI.APIKey,
			cfg.AI.Model,
			cfg.AI.BaseURL,
			cfg.AI.Temperature,
			cfg.RequestTimeout(),
		)
	}

	pipeline := ingest.New(src, summarizer, st, cfg, log)
	controller := poll.New(pipeline, cfg.PollInterval(), log)
	sweeper := sweep.New(st, cfg.Retention(), cfg.App.SweepSchedule, log)

	return &App{
		cfg:        cfg,
		log:        log,
		store:      st,
		summarizer: summarizer,
		pipeline:   pipeline,
		controller: controller,
		sweeper:    sweeper,
	}, nil
}

// resolveSecrets fills the IMAP password and summarizer API key from
// the keyring when the config file leaves them blank.
func resolveSecrets(cfg *model.Config) error {
	if cfg.IMAP.Password == "" {
		pw, err := credential.Get(credential.KeyIMAPPassword)
		if err != nil {
			return fmt.Errorf("IMAP password not in config and not in keyring: %w", err)
		}
		cfg.IMAP.Password = pw
	}

	if cfg.AI.Enabled && cfg.AI.APIKey == "" {
		key, err := credential.Get(credential.KeySummarizerAPIKey)
		if err != nil {
			return fmt.Errorf("summarizer API key not in config and not in keyring: %w", err)
		}
		cfg.AI.APIKey = key
	}

	return nil
}

// Run starts the poll controller and the retention sweeper, then
// blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.sweeper.Start(); err != nil {
		return err
	}

	a.controller.Start(ctx)
	a.log.Infow("inboxtasks running",
		"poll_interval", a.cfg.PollInterval(),
		"retention", a.cfg.Retention())

	<-ctx.Done()

	a.controller.Stop()
	a.sweeper.Stop()
	return nil
}

// PollNow requests an immediate poll cycle.
func (a *App) PollNow() {
	a.controller.PollNow()
}

// PollOnce runs a single pipeline cycle synchronously, without the
// controller. Used by the one-shot command.
func (a *App) PollOnce(ctx context.Context) (ingest.Report, error) {
	return a.pipeline.Run(ctx)
}

// Status returns the poll controller snapshot.
func (a *App) Status() poll.Status {
	return a.controller.Status()
}

// Complete marks the record for sourceUID as completed.
func (a *App) Complete(ctx context.Context, sourceUID string) error {
	return a.store.Complete(ctx, sourceUID)
}

// Archive marks a completed record as archived.
func (a *App) Archive(ctx context.Context, sourceUID string) error {
	return a.store.Archive(ctx, sourceUID)
}

// Delete removes the record. Its source UID remains tracked, so the
// message will not come back on later polls.
func (a *App) Delete(ctx context.Context, sourceUID string) error {
	return a.store.Delete(ctx, sourceUID)
}

// ClearCompleted archives every completed record and returns how many
// were archived.
func (a *App) ClearCompleted(ctx context.Context) (int, error) {
	return a.store.ArchiveAllCompleted(ctx)
}

// SweepNow runs the retention pass immediately.
func (a *App) SweepNow(ctx context.Context) (int, error) {
	return a.sweeper.SweepNow(ctx)
}

// ListActive returns the non-archived records, newest first.
func (a *App) ListActive(ctx context.Context) ([]model.TaskRecord, error) {
	return a.store.ListActive(ctx)
}

// ListAll returns every record including archived ones, newest first.
func (a *App) ListAll(ctx context.Context) ([]model.TaskRecord, error) {
	return a.store.ListAll(ctx)
}

// Counts returns the active and completed totals.
func (a *App) Counts(ctx context.Context) (store.Counts, error) {
	return a.store.Counts(ctx)
}

// TestMailbox verifies the IMAP connection and folder, returning the
// authenticated username.
func (a *App) TestMailbox(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout())
	defer cancel()

	src := imapsource.NewAdapter(
		a.cfg.IMAP.Host,
		a.cfg.IMAP.Port,
		a.cfg.IMAP.Username,
		a.cfg.IMAP.Password,
		a.cfg.IMAP.TLS,
		a.cfg.IMAP.Folder,
	)
	return src.ValidateConnection(ctx)
}

// TestSummarizer verifies the summarizer endpoint and credentials.
func (a *App) TestSummarizer(ctx context.Context) error {
	if a.summarizer == nil {
		return errors.New("summarizer is disabled (ai.enabled: false)")
	}
	return a.summarizer.Ping(ctx)
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}
