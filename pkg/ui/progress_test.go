package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/models"
)

func event(target string, page, posts int, total int64, state crawler.State) crawler.PageEvent {
	agg := &models.AggregateResult{MediaCount: total, Posts: make([]models.PostRecord, posts)}
	return crawler.PageEvent{Target: target, Page: page, State: state, Aggregate: agg}
}

func TestProgressLines(t *testing.T) {
	Color = false
	var buf bytes.Buffer
	p := NewProgress(&buf, false)

	p.OnPage(event("natgeo", 1, 12, 24, crawler.Continuing))
	p.OnPage(event("natgeo", 2, 24, 24, crawler.Done))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"natgeo [━━━━━━━━━━──────────] page 1 • 12/24 posts",
		"natgeo [━━━━━━━━━━━━━━━━━━━━] page 2 • 24/24 posts • done",
	}, lines)
}

func TestProgressLive(t *testing.T) {
	Color = false
	var buf bytes.Buffer
	p := NewProgress(&buf, true)

	p.OnPage(event("nasa", 1, 3, 0, crawler.Done))
	assert.True(t, strings.HasPrefix(buf.String(), "\r"))
	assert.True(t, strings.HasSuffix(buf.String(), "done\n"))
	assert.Contains(t, buf.String(), "[────────────────────]")
}

func TestProgressComplete(t *testing.T) {
	Color = false
	var buf bytes.Buffer
	p := NewProgress(&buf, false)
	p.now = func() time.Time { return p.startTime.Add(90 * time.Second) }

	p.OnPage(event("a", 2, 20, 20, crawler.Done))
	p.OnPage(event("b", 3, 30, 30, crawler.Done))
	buf.Reset()
	p.Complete()

	assert.Equal(t, "✓ Crawled 50 posts on 5 pages from 2 profiles\n  • in 1m30s\n", buf.String())
}

func TestPrinters(t *testing.T) {
	Color = false
	var buf bytes.Buffer
	old := Output
	Output = &buf
	defer func() { Output = old }()

	PrintError("Crawl failed", "boom")
	PrintWarning("Partial result saved")
	PrintInfo("Target", "natgeo")
	PrintSuccess("Done")

	assert.Equal(t, "Crawl failed: boom\nPartial result saved\nTarget: natgeo\nDone\n", buf.String())

	Color = true
	assert.Equal(t, "\033[31mx\033[0m", Red("x"))
	Color = false
}
