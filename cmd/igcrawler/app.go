package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"igcrawler/pkg/auth"
	"igcrawler/pkg/checkpoint"
	"igcrawler/pkg/config"
	"igcrawler/pkg/crawler"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/models"
	"igcrawler/pkg/session"
	"igcrawler/pkg/storage"
	"igcrawler/pkg/ui"
)

// app holds everything one invocation needs to run jobs
type app struct {
	cfg         *config.Config
	log         logger.Logger
	crawler     *crawler.Crawler
	sink        *storage.Manager
	progress    *ui.Progress
	checkpoints *checkpoint.Manager
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, flagOverrides(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("igcrawler starting")

	client, err := instagram.NewClientFromConfig(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	sink, err := storage.NewManager(cfg.Output, log)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		crawler: crawler.New(client, cfg, log),
		sink:    sink,
	}
	if !quiet {
		a.progress = ui.NewProgress(ui.Output, ui.Color)
	}
	if cfg.Crawl.Checkpoint {
		a.checkpoints, err = checkpoint.NewManager("", log)
		if err != nil {
			sink.Close()
			return nil, fmt.Errorf("failed to prepare checkpoints: %w", err)
		}
	}

	a.crawler.OnPage = a.onPage()
	return a, nil
}

// onPage fans a page event out to the progress display and the checkpoint store
func (a *app) onPage() func(crawler.PageEvent) {
	var track func(crawler.PageEvent)
	if a.checkpoints != nil {
		track = a.checkpoints.Track()
	}
	return func(ev crawler.PageEvent) {
		if a.progress != nil {
			a.progress.OnPage(ev)
		}
		if track != nil {
			track(ev)
		}
	}
}

// login resolves credentials and bootstraps the session shared by every job
func (a *app) login(ctx context.Context) (*session.Session, error) {
	manager, err := auth.NewManager("", a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account, err := manager.Resolve(a.cfg.Instagram)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("no Instagram credentials found, run 'igcrawler auth login' or pass --username and --password: %w", err)
		}
		return nil, err
	}

	if !quiet {
		ui.PrintInfo("Logging in as", account.Username)
	}
	return a.crawler.Login(ctx, account.Username, account.Password)
}

// saveCheckpoint records a failed profile crawl so it can be resumed
func (a *app) saveCheckpoint(err error) {
	if a.checkpoints == nil {
		return
	}
	je, ok := crawler.AsJobError(err)
	if !ok {
		return
	}
	cp := checkpoint.FromJobError(je)
	if cp == nil {
		return
	}
	if err := a.checkpoints.Save(cp); err != nil {
		a.log.WithError(err).Warn("Failed to save checkpoint")
		return
	}
	if !quiet {
		ui.PrintInfo("Checkpoint saved", a.checkpoints.Path(cp.Target))
	}
}

// clearCheckpoint removes the checkpoint of a profile crawl that completed
func (a *app) clearCheckpoint(mode crawler.Mode) {
	if a.checkpoints == nil || mode.Kind() != models.KindProfile {
		return
	}
	if err := a.checkpoints.Delete(mode.Target()); err != nil {
		a.log.WithError(err).Warn("Failed to remove checkpoint")
	}
}

func (a *app) close() {
	if err := a.sink.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close output")
	}
}

// reportError prints err, with the failed stage, page and cursor for job errors
func reportError(err error) {
	je, ok := crawler.AsJobError(err)
	if !ok {
		ui.PrintError("Error", err)
		return
	}

	ui.PrintError("Crawl failed", je.Err)
	ui.PrintInfo("Stage", string(je.Stage))
	if je.Target != "" {
		ui.PrintInfo("Target", je.Target)
	}
	if je.Page > 0 {
		ui.PrintInfo("Page", fmt.Sprint(je.Page))
	}
	if je.LastCursor != "" {
		ui.PrintInfo("Last cursor", je.LastCursor)
	}
	if je.Partial != nil {
		ui.PrintInfo("Collected", fmt.Sprintf("%d posts", len(je.Partial.Posts)))
	}
}
