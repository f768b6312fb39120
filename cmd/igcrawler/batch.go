package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"igcrawler/internal/runner"
	"igcrawler/pkg/ui"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run many jobs from a file",
	Long: `Run every job listed in a file, several at a time, with one login.

Each line is "<kind> <target>" where kind is one of:
  profile   crawl every post of a profile
  search    search users
  tag       search hashtags
  explore   fetch a hashtag explore feed

A line with a single word is a profile. Blank lines and lines starting with
# or // are ignored. Duplicate jobs run once. Use - to read from stdin.

A failed job does not stop the others. The command exits non-zero when any
job failed.`,
	Example: `  # jobs.txt
  natgeo
  profile nasa
  tag coffee
  explore sunset

  igcrawler batch jobs.txt --concurrent 3`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open batch file: %w", err)
		}
		defer f.Close()
		in = f
	}

	jobs, err := runner.ParseJobs(in)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		ui.PrintWarning("No jobs in batch file", args[0])
		return nil
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	sess, err := a.login(ctx)
	if err != nil {
		return err
	}

	if !quiet {
		ui.PrintInfo("Jobs", fmt.Sprintf("%d with %d workers", len(jobs), a.cfg.Crawl.ConcurrentJobs))
	}
	results := runner.RunAll(ctx, a.cfg.Crawl.ConcurrentJobs, a.crawler, sess, a.sink, jobs, a.log)

	for _, r := range results {
		if r.Success() {
			a.clearCheckpoint(r.Job.Mode)
			continue
		}
		if r.Skipped {
			continue
		}
		a.saveCheckpoint(r.Err)
		ui.PrintError(fmt.Sprintf("line %d: %s %s", r.Job.Line, r.Job.Mode.Kind(), r.Job.Mode.Target()), r.Err)
	}

	summary := runner.Summarize(results)
	if !quiet {
		if a.progress != nil {
			a.progress.Complete()
		}
		ui.PrintInfo("Succeeded", fmt.Sprint(summary.Succeeded))
		ui.PrintInfo("Failed", fmt.Sprint(summary.Failed))
		if summary.Skipped > 0 {
			ui.PrintInfo("Skipped (duplicates)", fmt.Sprint(summary.Skipped))
		}
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", summary.Failed, len(results))
	}
	return nil
}
