package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	noColor    bool
	quiet      bool

	// Flags of the single-job form, kept for scripts that predate the subcommands
	userIDFlag    string
	searchFlag    string
	searchTagFlag bool
	exploreFlag   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igcrawler",
	Short: "Crawl Instagram profiles, searches and hashtags into JSON",
	Long: `igcrawler logs in to Instagram once per run and collects structured data:

  - every post of a profile, following the pagination cursor to the end
  - user and hashtag search results
  - the raw hashtag explore response

Results are written as JSON files, a JSON Lines stream or stdout, optionally
projected through a jq filter. Interrupted profile crawls are checkpointed
and can be resumed.`,
	Example: `  # Crawl a profile
  igcrawler profile natgeo

  # The same, in the single-job form
  igcrawler --user-id natgeo

  # Search hashtags and print only their names
  igcrawler search coffee --tag --stdout --filter '.hashtags[].name'`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:         cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.Color = false
		}
		if !quiet && cmd.Name() != "help" && cmd.Name() != "version" {
			ui.PrintLogo()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if userIDFlag == "" && searchFlag == "" && exploreFlag == "" && !searchTagFlag {
			return cmd.Help()
		}
		mode, err := crawler.ModeFromParams(userIDFlag, searchFlag, exploreFlag, searchTagFlag)
		if err != nil {
			return err
		}
		return runJob(cmd, mode, false)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default is ./igcrawler.yaml or ~/.config/igcrawler/config.yaml)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress logo and progress output")

	pf.String("log-level", "", "log level (debug, info, warn, error, disabled)")
	pf.String("log-file", "", "also write JSON logs to this file, rotated by size")
	pf.StringP("username", "u", "", "Instagram username to log in with")
	pf.String("password", "", "Instagram password (prefer 'igcrawler auth login')")
	pf.StringP("account", "a", "", "use a specific stored account")
	pf.StringP("output", "o", "", "output directory")
	pf.String("format", "", "output format (json, jsonl)")
	pf.String("filter", "", "jq expression applied to every record before writing")
	pf.Bool("stdout", false, "write records to stdout as JSON Lines")
	pf.Bool("keep-partial", false, "write what was collected when a profile crawl fails")
	pf.Bool("checkpoint", true, "save a checkpoint after every profile page")
	pf.Int("max-pages", -1, "maximum pages per profile (0 for no limit)")
	pf.Int("page-size", 0, "posts requested per continuation page")
	pf.Int("concurrent", 0, "number of jobs run at once")
	pf.Int("rate-limit", 0, "requests per minute")
	pf.Int("max-retries", -1, "maximum retry attempts for failed requests")

	rootCmd.Flags().StringVar(&userIDFlag, "user-id", "", "crawl this profile")
	rootCmd.Flags().StringVar(&searchFlag, "search", "", "run a search for this query")
	rootCmd.Flags().BoolVar(&searchTagFlag, "search-tag", false, "search hashtags instead of users")
	rootCmd.Flags().StringVar(&exploreFlag, "explore", "", "fetch the explore feed of this hashtag")

	rootCmd.SetVersionTemplate(`igcrawler {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// flagOverrides collects the persistent flags set on the command line, in
// the shape config.MergeCommandLineFlags expects.
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	for _, name := range []string{"username", "password", "account", "output", "format", "filter", "log-level", "log-file"} {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			flags[name] = v
		}
	}
	for _, name := range []string{"stdout", "keep-partial", "checkpoint"} {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			flags[name] = v
		}
	}
	for _, name := range []string{"max-pages", "page-size", "concurrent", "rate-limit", "max-retries"} {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			flags[name] = v
		}
	}
	return flags
}
