package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"igcrawler/pkg/crawler"
)

// Progress renders crawl progress from page events. With Live set a single
// line is redrawn per target; otherwise one line is printed per page.
type Progress struct {
	mu        sync.Mutex
	out       io.Writer
	live      bool
	startTime time.Time
	pages     map[string]int
	posts     map[string]int
	now       func() time.Time
}

// NewProgress creates a progress display writing to out
func NewProgress(out io.Writer, live bool) *Progress {
	return &Progress{
		out:       out,
		live:      live,
		startTime: time.Now(),
		pages:     make(map[string]int),
		posts:     make(map[string]int),
		now:       time.Now,
	}
}

// OnPage is a crawler page hook
func (p *Progress) OnPage(ev crawler.PageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	posts := len(ev.Aggregate.Posts)
	p.pages[ev.Target] = ev.Page
	p.posts[ev.Target] = posts

	line := fmt.Sprintf("%s [%s] page %d • %d/%d posts",
		Cyan(ev.Target),
		bar(posts, ev.Aggregate.MediaCount),
		ev.Page,
		posts,
		ev.Aggregate.MediaCount,
	)
	if ev.State == crawler.Done {
		line += " • " + Green("done")
	}

	if p.live {
		fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
		if ev.State == crawler.Done {
			fmt.Fprintln(p.out)
		}
		return
	}
	fmt.Fprintln(p.out, line)
}

// Complete prints a summary over every target seen
func (p *Progress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	totalPosts, totalPages := 0, 0
	for target, posts := range p.posts {
		totalPosts += posts
		totalPages += p.pages[target]
	}
	elapsed := p.now().Sub(p.startTime)

	fmt.Fprintf(p.out, "%s Crawled %d posts on %d pages from %d profiles\n",
		Green("✓"), totalPosts, totalPages, len(p.posts))
	fmt.Fprintf(p.out, "  %s in %s\n", Dim("•"), formatDuration(elapsed))
}

func bar(done int, total int64) string {
	const width = 20
	filled := 0
	if total > 0 {
		filled = int(float64(done) / float64(total) * width)
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
