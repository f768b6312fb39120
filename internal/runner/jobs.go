package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"igcrawler/pkg/crawler"
)

// ParseJobs reads a batch file. Each non-blank line is "<kind> <target>"
// where kind is profile, search, tag (hashtag search) or explore. Lines
// starting with "#" or "//" are comments. A bare word is a profile.
func ParseJobs(r io.Reader) ([]Job, error) {
	var (
		jobs []Job
		errs []error
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "//") {
			continue
		}

		mode, err := parseLine(text)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		jobs = append(jobs, Job{Line: line, Mode: mode})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return jobs, nil
}

func parseLine(text string) (crawler.Mode, error) {
	fields := strings.Fields(text)
	if len(fields) == 1 {
		return crawler.ModeFromParams(fields[0], "", "", false)
	}

	kind := strings.ToLower(fields[0])
	target := strings.Join(fields[1:], " ")
	switch kind {
	case "profile", "user":
		if len(fields) != 2 {
			return nil, fmt.Errorf("profile takes one username, got %q", target)
		}
		return crawler.ModeFromParams(target, "", "", false)
	case "search":
		return crawler.ModeFromParams("", target, "", false)
	case "tag", "search-tag":
		return crawler.ModeFromParams("", target, "", true)
	case "explore":
		return crawler.ModeFromParams("", "", target, false)
	default:
		return nil, fmt.Errorf("unknown job kind %q", fields[0])
	}
}
