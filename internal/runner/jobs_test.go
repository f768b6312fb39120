package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/crawler"
)

func TestParseJobs(t *testing.T) {
	input := `
# accounts
natgeo
profile nasa

search latte art
tag coffee
search-tag #sunset
explore #travel
// done
`
	jobs, err := ParseJobs(strings.NewReader(input))
	require.NoError(t, err)

	want := []Job{
		{Line: 3, Mode: crawler.ProfileMode{UserID: "natgeo"}},
		{Line: 4, Mode: crawler.ProfileMode{UserID: "nasa"}},
		{Line: 6, Mode: crawler.SearchMode{Query: "latte art"}},
		{Line: 7, Mode: crawler.SearchMode{Query: "coffee", Tag: true}},
		{Line: 8, Mode: crawler.SearchMode{Query: "#sunset", Tag: true}},
		{Line: 9, Mode: crawler.TagExploreMode{TagName: "travel"}},
	}
	assert.Equal(t, want, jobs)
}

func TestParseJobsErrors(t *testing.T) {
	_, err := ParseJobs(strings.NewReader("natgeo\nfollow nasa\nprofile a b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `line 2: unknown job kind "follow"`)
	assert.Contains(t, err.Error(), "line 3: profile takes one username")

	jobs, err := ParseJobs(strings.NewReader("\n# nothing\n"))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
