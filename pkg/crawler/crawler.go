package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"igcrawler/pkg/config"
	"igcrawler/pkg/extract"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/models"
	"igcrawler/pkg/query"
	"igcrawler/pkg/session"
)

// Crawler runs crawl jobs against one request engine. A Crawler holds no
// per-job state and may run jobs concurrently.
type Crawler struct {
	engine       session.Engine
	endpoints    config.EndpointsConfig
	crawl        config.CrawlConfig
	bootstrapper *session.Bootstrapper
	logger       logger.Logger

	// KeepPartial emits the partial aggregate of a failed profile crawl,
	// marked Partial, before the error is returned.
	KeepPartial bool
	// OnPage is called after every merged profile page.
	OnPage func(PageEvent)

	now func() time.Time
}

// New creates a crawler for the given engine and configuration
func New(engine session.Engine, cfg *config.Config, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		engine:       engine,
		endpoints:    cfg.Endpoints,
		crawl:        cfg.Crawl,
		bootstrapper: session.NewBootstrapper(engine, cfg.Endpoints, log),
		logger:       log,
		KeepPartial:  cfg.Output.KeepPartial,
		now:          time.Now,
	}
}

// Login bootstraps the session shared by every job.
func (c *Crawler) Login(ctx context.Context, username, password string) (*session.Session, error) {
	sess, err := c.bootstrapper.Bootstrap(ctx, username, password)
	if err != nil {
		return nil, &JobError{Stage: StageBootstrap, Target: username, Err: err}
	}
	return sess, nil
}

// Run executes one job and hands its record to sink.
func (c *Crawler) Run(ctx context.Context, sess *session.Session, mode Mode, sink Sink) error {
	if mode == nil {
		return ErrNoMode
	}
	log := c.logger.WithFields(map[string]interface{}{"kind": string(mode.Kind()), "target": mode.Target()})
	log.Info("Job started")
	start := c.now()

	var (
		records int
		err     error
	)
	switch m := mode.(type) {
	case ProfileMode:
		records, err = c.crawlProfile(ctx, sess, m, sink)
	case SearchMode:
		records, err = c.search(ctx, sess, m, sink)
	case TagExploreMode:
		records, err = c.explore(ctx, sess, m, sink)
	default:
		err = fmt.Errorf("unsupported mode %T", mode)
	}

	logger.LogJobSummary(c.logger, string(mode.Kind()), mode.Target(), records, c.now().Sub(start), err)
	return err
}

// ResumePoint is a saved partial profile crawl.
type ResumePoint struct {
	Partial *models.AggregateResult
	// Pages counts the pages merged into Partial
	Pages int
	// LastCursor fetched the last merged page
	LastCursor string
}

// Resume continues a profile crawl from a saved partial aggregate. MaxPages
// applies to the pages fetched by this run.
func (c *Crawler) Resume(ctx context.Context, sess *session.Session, target string, from ResumePoint, sink Sink) error {
	partial := from.Partial
	if partial == nil {
		return fmt.Errorf("nothing to resume for %s", target)
	}
	c.logger.WithFields(map[string]interface{}{
		"target": target,
		"pages":  from.Pages,
		"posts":  len(partial.Posts),
		"cursor": partial.Cursor(),
	}).Info("Resuming crawl")

	d := c.driver()
	_, err := c.finishProfile(ctx, d, sess, target, partial.Clone(), d.resumed(from.Pages, from.LastCursor), sink)
	return err
}

func (c *Crawler) crawlProfile(ctx context.Context, sess *session.Session, m ProfileMode, sink Sink) (int, error) {
	resp, err := c.engine.Do(ctx, sess.Apply(instagram.Get(c.endpoints.ProfileURL(m.UserID))))
	if err != nil {
		return 0, &JobError{Stage: StageFirstPage, Target: m.UserID, Page: 1, Err: err}
	}

	agg, err := extract.FirstPage(resp.Body)
	if err != nil {
		return 0, &JobError{Stage: StageFirstPage, Target: m.UserID, Page: 1, Err: err}
	}

	d := c.driver()
	d.pageDone(m.UserID, 1, len(agg.Posts), "", agg)

	return c.finishProfile(ctx, d, sess, m.UserID, agg, d.fresh(1), sink)
}

func (c *Crawler) finishProfile(ctx context.Context, d *Driver, sess *session.Session, target string, agg *models.AggregateResult, from position, sink Sink) (int, error) {
	agg, pages, err := d.walk(ctx, sess, target, agg, from)
	if err != nil {
		if c.KeepPartial {
			partial := c.profileResult(target, agg, pages)
			partial.Partial = true
			if emitErr := sink.Emit(context.WithoutCancel(ctx), partial); emitErr != nil {
				c.logger.WithError(emitErr).Error("Failed to emit partial result")
			}
		}
		return 0, err
	}

	if err := sink.Emit(ctx, c.profileResult(target, agg, pages)); err != nil {
		return 0, &JobError{Stage: StageEmit, Target: target, Err: err}
	}
	return 1, nil
}

func (c *Crawler) driver() *Driver {
	d := NewDriver(c.engine, c.endpoints, c.crawl, c.logger)
	d.OnPage = c.OnPage
	return d
}

func (c *Crawler) profileResult(target string, agg *models.AggregateResult, pages int) *models.ProfileResult {
	return &models.ProfileResult{
		Target:          target,
		Pages:           pages,
		CrawledAt:       c.now().UTC(),
		AggregateResult: *agg.Clone(),
	}
}

func (c *Crawler) search(ctx context.Context, sess *session.Session, m SearchMode, sink Sink) (int, error) {
	searchURL := c.endpoints.UserSearchURL(m.Query)
	if m.Tag {
		searchURL = c.endpoints.TagSearchURL(m.Query)
	}

	resp, err := c.engine.Do(ctx, sess.Apply(instagram.Get(searchURL)))
	if err != nil {
		return 0, &JobError{Stage: StageSearch, Target: m.Query, Err: err}
	}

	var rec models.Record
	if m.Tag {
		tags, err := extract.TagSearch(resp.Body)
		if err != nil {
			return 0, &JobError{Stage: StageSearch, Target: m.Query, Err: err}
		}
		rec = &models.TagSearchResult{Query: m.Query, Tags: tags, CrawledAt: c.now().UTC()}
	} else {
		users, err := extract.UserSearch(resp.Body)
		if err != nil {
			return 0, &JobError{Stage: StageSearch, Target: m.Query, Err: err}
		}
		rec = &models.UserSearchResult{Query: m.Query, Users: users, CrawledAt: c.now().UTC()}
	}

	if err := sink.Emit(ctx, rec); err != nil {
		return 0, &JobError{Stage: StageEmit, Target: m.Query, Err: err}
	}
	return 1, nil
}

func (c *Crawler) explore(ctx context.Context, sess *session.Session, m TagExploreMode, sink Sink) (int, error) {
	q, err := query.BuildPaginationQuery(c.endpoints.QueryURL, c.endpoints.TagExploreHash, query.TagExploreVariables(m.TagName))
	if err != nil {
		return 0, &JobError{Stage: StageExplore, Target: m.TagName, Err: err}
	}

	resp, err := c.engine.Do(ctx, sess.Apply(q.Request()))
	if err != nil {
		return 0, &JobError{Stage: StageExplore, Target: m.TagName, Err: err}
	}

	body := json.RawMessage(resp.Body)
	if !json.Valid(resp.Body) {
		quoted, _ := json.Marshal(string(resp.Body))
		body = quoted
	}
	c.logger.WithFields(map[string]interface{}{
		"tag":    m.TagName,
		"status": resp.Status,
		"bytes":  len(resp.Body),
	}).Info("Tag explore response received")

	rec := &models.ExploreResult{TagName: m.TagName, Status: resp.Status, Body: body, CrawledAt: c.now().UTC()}
	if err := sink.Emit(ctx, rec); err != nil {
		return 0, &JobError{Stage: StageEmit, Target: m.TagName, Err: err}
	}
	return 1, nil
}
