package crawler

import (
	"context"
	"fmt"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/extract"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/models"
	"igcrawler/pkg/query"
	"igcrawler/pkg/session"
)

// Engine is the request engine as the crawler sees it.
type Engine interface {
	Do(ctx context.Context, req *instagram.Request) (*instagram.Response, error)
}

// State is the pagination state of a profile crawl.
type State int

const (
	Continuing State = iota
	Done
)

func (s State) String() string {
	if s == Done {
		return "done"
	}
	return "continuing"
}

// PageEvent describes a page that was just merged into the aggregate.
type PageEvent struct {
	Target string
	// Page is the number of pages merged so far, the landing page being 1
	Page      int
	NewPosts  int
	Cursor    string
	State     State
	Aggregate *models.AggregateResult
}

// Driver walks the continuation queries of one profile until the platform
// reports no next page.
type Driver struct {
	engine    Engine
	endpoints config.EndpointsConfig
	pageSize  int
	maxPages  int
	logger    logger.Logger

	// OnPage is called after every merged page. The aggregate must not be
	// retained past the call; clone it if needed.
	OnPage func(PageEvent)
}

// NewDriver creates a pagination driver
func NewDriver(engine Engine, endpoints config.EndpointsConfig, crawl config.CrawlConfig, log logger.Logger) *Driver {
	if log == nil {
		log = logger.GetLogger()
	}
	pageSize := crawl.PageSize
	if pageSize <= 0 {
		pageSize = 12
	}
	return &Driver{
		engine:    engine,
		endpoints: endpoints,
		pageSize:  pageSize,
		maxPages:  crawl.MaxPages,
		logger:    log,
	}
}

// Run fetches continuation pages into state until has_next_page is false.
// pagesSoFar counts pages already merged into state.
func (d *Driver) Run(ctx context.Context, sess *session.Session, state *models.AggregateResult, pagesSoFar int) (*models.AggregateResult, error) {
	agg, _, err := d.walk(ctx, sess, "", state, d.fresh(pagesSoFar))
	return agg, err
}

// position is where a walk starts.
type position struct {
	// pages already merged into the state
	pages int
	// lastCursor fetched the last merged page
	lastCursor string
	// limit is the page count at which the walk stops, 0 for none
	limit int
}

// fresh starts a crawl whose landing page counts toward MaxPages.
func (d *Driver) fresh(pages int) position {
	return position{pages: pages, limit: d.maxPages}
}

// resumed continues a checkpoint with a new MaxPages allowance.
func (d *Driver) resumed(pages int, lastCursor string) position {
	pos := position{pages: pages, lastCursor: lastCursor}
	if d.maxPages > 0 {
		pos.limit = pages + d.maxPages
	}
	return pos
}

func (d *Driver) walk(ctx context.Context, sess *session.Session, target string, state *models.AggregateResult, from position) (*models.AggregateResult, int, error) {
	log := d.logger.WithFields(map[string]interface{}{"target": target, "page_id": state.PageID})
	pages := from.pages
	lastCursor := from.lastCursor
	consumed := make(map[string]struct{})
	if lastCursor != "" {
		consumed[lastCursor] = struct{}{}
	}

	fail := func(err error) (*models.AggregateResult, int, error) {
		return state, pages, &JobError{
			Stage:      StagePage,
			Target:     target,
			Page:       pages + 1,
			LastCursor: lastCursor,
			Partial:    state,
			Err:        err,
		}
	}

	for state.HasNextPage {
		if err := ctx.Err(); err != nil {
			log.WithField("pages", pages).Warn("Crawl cancelled")
			return fail(err)
		}
		if from.limit > 0 && pages >= from.limit {
			return fail(fmt.Errorf("%w (%d)", ErrPageLimit, d.maxPages))
		}

		cursor := state.Cursor()
		if cursor == "" {
			return fail(errs.NewParseError("page_info.end_cursor", "has_next_page is true but end_cursor is empty", nil))
		}
		if _, seen := consumed[cursor]; seen {
			return fail(fmt.Errorf("%w: %s", ErrCursorRepeat, cursor))
		}
		consumed[cursor] = struct{}{}

		q, err := query.BuildPaginationQuery(d.endpoints.QueryURL, d.endpoints.MediaHash,
			query.ContinuationVariables(state.PageID, d.pageSize, cursor))
		if err != nil {
			return fail(err)
		}

		// a page already sent finishes after cancellation; waits and retries do not
		resp, err := d.engine.Do(instagram.FinishInFlight(ctx), sess.Apply(q.Request()))
		if err != nil {
			return fail(err)
		}

		before := len(state.Posts)
		next, err := extract.NextPage(resp.Body, state)
		if err != nil {
			return fail(err)
		}
		state = next
		pages++
		lastCursor = cursor

		d.pageDone(target, pages, len(state.Posts)-before, cursor, state)
	}

	return state, pages, nil
}

func (d *Driver) pageDone(target string, page, newPosts int, cursor string, state *models.AggregateResult) {
	st := Continuing
	if !state.HasNextPage {
		st = Done
	}
	logger.LogPageProgress(d.logger, target, page, newPosts, state.HasNextPage)
	if d.OnPage != nil {
		d.OnPage(PageEvent{
			Target:    target,
			Page:      page,
			NewPosts:  newPosts,
			Cursor:    cursor,
			State:     st,
			Aggregate: state,
		})
	}
}
