package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/internal/browser/cdp"
	"github.com/xkilldash9x/pagechain/internal/browser/humanoid"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/browser/pw"
	"github.com/xkilldash9x/pagechain/internal/config"
	"github.com/xkilldash9x/pagechain/internal/flow"
	"github.com/xkilldash9x/pagechain/internal/observability"
	"github.com/xkilldash9x/pagechain/internal/pageobject"
)

// launchBrowser is swapped out in tests.
var launchBrowser = launch

func newRunCmd() *cobra.Command {
	var (
		parallel int
		failFast bool
		startURL string
	)

	runCmd := &cobra.Command{
		Use:   "run [flow files...]",
		Short: "Runs YAML flows, each on its own page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			flows, err := loadFlows(args)
			if err != nil {
				return err
			}
			for _, f := range flows {
				if f.Start == "" {
					f.Start = startURL
				}
			}

			open, closeBrowser, err := launchBrowser(ctx, cfg.Browser(), logger)
			if err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer closeBrowser()

			runner := &flow.Runner{
				Open:     open,
				Settings: pageobject.SettingsFromConfig(cfg),
				Source:   humanoid.FirstOf(humanoid.EnvSource{}, humanoid.ConfigSource{Config: cfg}),
				Logger:   logger,
				Parallel: parallel,
				FailFast: failFast,
			}
			results, runErr := runner.RunAll(ctx, flows)
			printResults(cmd.OutOrStdout(), results)
			return runErr
		},
	}

	runCmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "number of flows to run concurrently")
	runCmd.Flags().StringVar(&startURL, "url", "", "start address for flows that do not set one")
	runCmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop the remaining flows after the first failure")
	runCmd.Flags().String("driver", config.DriverChromedp, "browser driver (chromedp or playwright)")
	runCmd.Flags().Bool("headless", true, "run the browser without a window")
	runCmd.Flags().String("remote-url", "", "attach to a running browser instead of launching one")
	runCmd.Flags().Bool("install", false, "install playwright browsers before launching")
	runCmd.Flags().Bool("strict", true, "fail clicks whose page handler reports an error")
	runCmd.Flags().Bool("animate", true, "show the cursor marker and animate its movement")
	runCmd.Flags().Float64("pace", 1.0, "scale for cursor movement time; 0 snaps")
	return runCmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [flow files...]",
		Short: "Parses and validates flow files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flows, err := loadFlows(args)
			if err != nil {
				return err
			}
			for _, f := range flows {
				cmd.Printf("%s (%d steps) %s\n", f.Name, len(f.Steps), f.Source)
			}
			cmd.Printf("%d flows OK\n", len(flows))
			return nil
		},
	}
}

func loadFlows(paths []string) ([]*flow.Flow, error) {
	var flows []*flow.Flow
	for _, path := range paths {
		loaded, err := flow.Load(path)
		if err != nil {
			return nil, err
		}
		flows = append(flows, loaded...)
	}
	return flows, nil
}

func printResults(w io.Writer, results []flow.Result) {
	passed := 0
	for _, res := range results {
		status := "PASS"
		if res.Err != nil {
			status = "FAIL"
		} else {
			passed++
		}
		fmt.Fprintf(w, "%s  %-30s %s\n", status, res.Name, res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Fprintf(w, "      %v\n", res.Err)
		}
	}
	fmt.Fprintf(w, "%d/%d flows passed\n", passed, len(results))
}

// launch starts the configured driver and returns an opener for fresh pages.
func launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (flow.Opener, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverPlaywright:
		b, err := pw.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		open := func(ctx context.Context) (page.Page, func(), error) {
			p, err := b.NewPage(ctx)
			if err != nil {
				return nil, nil, err
			}
			return p, func() {
				if err := p.Close(); err != nil {
					logger.Warn("Failed to close page.", zap.String("page_id", p.InstanceID()), zap.Error(err))
				}
			}, nil
		}
		return open, func() {
			if err := b.Close(); err != nil {
				logger.Warn("Failed to shut down playwright.", zap.Error(err))
			}
		}, nil
	default:
		b, err := cdp.Launch(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		open := func(ctx context.Context) (page.Page, func(), error) {
			p, err := b.NewPage(ctx)
			if err != nil {
				return nil, nil, err
			}
			return p, p.Close, nil
		}
		return open, b.Close, nil
	}
}
