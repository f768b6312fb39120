package crawler

import (
	"errors"
	"fmt"
	"strings"

	"igcrawler/pkg/models"
)

var (
	// ErrCursorRepeat is returned when the platform hands back a cursor
	// that was already consumed.
	ErrCursorRepeat = errors.New("end cursor repeated")
	// ErrPageLimit is returned when a profile has more pages than allowed.
	ErrPageLimit = errors.New("page limit reached")
)

// Stage names the step of a job that failed.
type Stage string

const (
	StageBootstrap Stage = "bootstrap"
	StageFirstPage Stage = "first_page"
	StagePage      Stage = "page"
	StageSearch    Stage = "search"
	StageExplore   Stage = "explore"
	StageEmit      Stage = "emit"
)

// JobError reports where a job stopped. For profile crawls Partial holds
// everything accumulated before the failure.
type JobError struct {
	Stage  Stage
	Target string
	// Page is the page being fetched when the job failed, starting at 1
	Page int
	// LastCursor is the last cursor whose page was merged
	LastCursor string
	Partial    *models.AggregateResult
	Err        error
}

func (e *JobError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Stage)
	if e.Target != "" {
		fmt.Fprintf(&b, " for %s", e.Target)
	}
	if e.Page > 0 {
		fmt.Fprintf(&b, " at page %d", e.Page)
	}
	if e.LastCursor != "" {
		fmt.Fprintf(&b, " after cursor %s", e.LastCursor)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// AsJobError returns the JobError in err's chain, if any.
func AsJobError(err error) (*JobError, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je, true
	}
	return nil, false
}
