package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/models"
	"igcrawler/pkg/session"
	"igcrawler/pkg/ui"
)

var (
	resumeCrawl bool
	tagSearch   bool
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Collect every post of a profile",
	Long: `Collect every post of a profile by loading the profile page and then
following the pagination cursor until the last page.

With checkpoints enabled the crawl state is saved after every page, so an
interrupted crawl can be continued with --resume.`,
	Example: `  # Crawl a profile into ./output
  igcrawler profile natgeo

  # Only the first three pages, one JSON line per run
  igcrawler profile natgeo --max-pages 3 --format jsonl

  # Continue an interrupted crawl
  igcrawler profile natgeo --resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, crawler.ProfileMode{UserID: strings.TrimSpace(args[0])}, resumeCrawl)
	},
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search users or hashtags",
	Example: `  # Users matching a query
  igcrawler search "national geographic"

  # Hashtags, names only
  igcrawler search coffee --tag --stdout --filter '.hashtags[].name'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, crawler.SearchMode{Query: strings.TrimSpace(args[0]), Tag: tagSearch}, false)
	},
}

// exploreCmd represents the explore command
var exploreCmd = &cobra.Command{
	Use:   "explore <hashtag>",
	Short: "Fetch the explore feed of a hashtag",
	Long: `Fetch the first explore page of a hashtag and store the response body
as returned by the platform.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := crawler.ModeFromParams("", "", args[0], false)
		if err != nil {
			return err
		}
		return runJob(cmd, mode, false)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exploreCmd)

	profileCmd.Flags().BoolVar(&resumeCrawl, "resume", false, "continue from the saved checkpoint")
	searchCmd.Flags().BoolVar(&tagSearch, "tag", false, "search hashtags instead of users")
}

// signalContext is cancelled on the first interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runJob(cmd *cobra.Command, mode crawler.Mode, resume bool) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	if !quiet {
		ui.PrintInfo("Target", fmt.Sprintf("%s %s", mode.Kind(), mode.Target()))
	}

	if !resume && !quiet && mode.Kind() == models.KindProfile && a.checkpoints != nil && a.checkpoints.Exists(mode.Target()) {
		ui.PrintWarning("A checkpoint exists for " + mode.Target() + ", pass --resume to continue it")
	}

	sess, err := a.login(ctx)
	if err != nil {
		return err
	}

	if resume {
		err = a.resume(ctx, sess, mode.Target())
	} else {
		err = a.crawler.Run(ctx, sess, mode, a.sink)
	}
	if err != nil {
		a.saveCheckpoint(err)
		return err
	}

	a.clearCheckpoint(mode)

	if !quiet {
		if a.progress != nil && mode.Kind() == models.KindProfile {
			a.progress.Complete()
		}
		ui.PrintSuccess(fmt.Sprintf("Done, %d record(s) written", a.sink.Written()))
		if !a.cfg.Output.Stdout {
			ui.PrintInfo("Output", a.sink.GetOutputDir())
		}
	}
	return nil
}

// resume continues target from its checkpoint
func (a *app) resume(ctx context.Context, sess *session.Session, target string) error {
	if a.checkpoints == nil {
		return fmt.Errorf("checkpoints are disabled, nothing to resume for %s", target)
	}
	cp, err := a.checkpoints.Load(target)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint for %s", target)
	}
	if !quiet {
		ui.PrintInfo("Resuming", fmt.Sprintf("%s from page %d (%d posts)", target, cp.Pages+1, len(cp.Partial.Posts)))
	}
	return a.crawler.Resume(ctx, sess, target, cp.ResumePoint(), a.sink)
}
