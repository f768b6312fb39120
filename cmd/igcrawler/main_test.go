package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"igcrawler/internal/testutil"
	"igcrawler/pkg/models"
	"igcrawler/pkg/ui"
)

// setupCLI points the CLI at a mock server with every user directory in a
// temp dir and returns the server and the output directory.
func setupCLI(t *testing.T) (*testutil.MockInstagramServer, string) {
	t.Helper()
	keyring.MockInit()

	server := testutil.NewMockInstagramServer()
	t.Cleanup(server.Close)
	server.AddProfile(testutil.Profile{
		ID:       "787132",
		Username: "natgeo",
		FullName: "National Geographic",
		Pages:    testutil.GeneratePages(30, 12),
	})
	server.AddProfile(testutil.Profile{
		ID:       "1001",
		Username: "tiny",
		Pages:    testutil.GeneratePages(3, 12),
	})
	server.SetSearchResults(nil, []testutil.SearchTag{{Name: "coffee", MediaCount: 150000000}})

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("IGCRAWLER_PASSPHRASE", "test-passphrase")

	e := server.Endpoints()
	t.Setenv("IGCRAWLER_BASE_URL", e.BaseURL)
	t.Setenv("IGCRAWLER_LOGIN_URL", e.LoginURL)
	t.Setenv("IGCRAWLER_QUERY_URL", e.QueryURL)
	t.Setenv("IGCRAWLER_SEARCH_URL", e.SearchURL)

	old := ui.Output
	ui.Output = io.Discard
	t.Cleanup(func() { ui.Output = old })

	return server, filepath.Join(home, "out")
}

func execute(t *testing.T, out string, args ...string) error {
	t.Helper()
	// flags given later override these defaults
	argv := []string{
		"--quiet",
		"--log-level=disabled",
		"--username=" + testutil.Username,
		"--password=" + testutil.Password,
		"--output=" + out,
		"--format=json",
	}
	rootCmd.SetArgs(append(argv, args...))
	return rootCmd.Execute()
}

func readProfile(t *testing.T, path string) models.ProfileResult {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var res models.ProfileResult
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestProfileCommand(t *testing.T) {
	server, out := setupCLI(t)

	require.NoError(t, execute(t, out, "profile", "natgeo", "--resume=false"))

	res := readProfile(t, filepath.Join(out, "profile_natgeo.json"))
	assert.Equal(t, "National Geographic", res.PageName)
	assert.Equal(t, 3, res.Pages)
	assert.Len(t, res.Posts, 30)
	assert.Equal(t, 2, server.RequestsTo("/graphql/query/"))

	// a finished crawl leaves no checkpoint behind
	entries, _ := os.ReadDir(filepath.Join(os.Getenv("XDG_DATA_HOME"), "igcrawler", "checkpoints"))
	assert.Empty(t, entries)
}

func TestProfileCommandResumesAfterPageLimit(t *testing.T) {
	_, out := setupCLI(t)

	err := execute(t, out, "profile", "natgeo", "--resume=false", "--max-pages", "2", "--keep-partial")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page limit reached")

	partial := readProfile(t, filepath.Join(out, "profile_natgeo_partial.json"))
	assert.True(t, partial.Partial)
	assert.Len(t, partial.Posts, 24)

	require.NoError(t, execute(t, out, "profile", "natgeo", "--resume", "--max-pages", "2", "--keep-partial=false"))

	res := readProfile(t, filepath.Join(out, "profile_natgeo.json"))
	assert.False(t, res.Partial)
	assert.Len(t, res.Posts, 30)
	assert.Equal(t, 3, res.Pages)
}

func TestBatchCommand(t *testing.T) {
	server, out := setupCLI(t)

	jobs := filepath.Join(t.TempDir(), "jobs.txt")
	require.NoError(t, os.WriteFile(jobs, []byte(strings.Join([]string{
		"# weekly crawl",
		"natgeo",
		"profile tiny",
		"tag coffee",
		"profile natgeo",
		"profile ghost",
	}, "\n")), 0644))

	err := execute(t, out, "batch", jobs, "--concurrent", "2", "--format", "jsonl", "--max-pages", "0")
	require.Error(t, err)
	assert.Equal(t, "1 of 5 jobs failed", err.Error())

	data, err := os.ReadFile(filepath.Join(out, "records.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, 1, server.RequestsTo("/web/search/topsearch/"))
}

func TestLegacyFlagsRejectAmbiguousMode(t *testing.T) {
	_, out := setupCLI(t)

	err := execute(t, out, "--user-id", "natgeo", "--search", "coffee")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one of")

	userIDFlag, searchFlag = "", ""
}
