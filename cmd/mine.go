package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/icp-miner/internal/emailgen"
	"github.com/sells-group/icp-miner/internal/mining"
	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/internal/store"
	"github.com/sells-group/icp-miner/internal/waterfall"
	"github.com/sells-group/icp-miner/internal/waterfall/source"
	anthropicpkg "github.com/sells-group/icp-miner/pkg/anthropic"
	"github.com/sells-group/icp-miner/pkg/prospect"
	"github.com/sells-group/icp-miner/pkg/verify"
	"github.com/sells-group/icp-miner/pkg/workmail"
)

var (
	mineJobID    string
	mineSite     string
	mineSites    []string
	mineBatch    bool
	mineMaxPages int
	minePageSize int
	mineTarget   int
	mineUser     string
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Advance mining jobs against the search API",
	Long:  "Runs one job (--job), one job per site in batch mode (--site --batch), or fans out across sites (--sites a,b,c --batch).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		orch, st, err := buildOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		switch {
		case mineJobID != "":
			result := orch.Mine(ctx, mineRequest(model.MineRequest{JobID: mineJobID}))
			return printJSON(result)

		case len(mineSites) > 0:
			if !mineBatch {
				return eris.New("--sites requires --batch")
			}
			results, err := mineAcrossSites(ctx, orch, mineSites)
			if err != nil {
				return err
			}
			return printJSON(results)

		case mineSite != "":
			if !mineBatch {
				return eris.New("--site requires --batch (or use --job for a single job)")
			}
			result := orch.Mine(ctx, mineRequest(model.MineRequest{SiteID: mineSite, Batch: true}))
			return printJSON(result)

		default:
			return eris.New("one of --job, --site, or --sites is required")
		}
	},
}

// mineRequest applies the shared override flags onto a base request.
func mineRequest(req model.MineRequest) model.MineRequest {
	req.MaxPages = mineMaxPages
	req.PageSize = minePageSize
	req.TargetLeads = mineTarget
	req.UserID = mineUser
	return req
}

// mineAcrossSites advances at most one job per site, all sites concurrently.
// Per-site failures land in that site's result rather than aborting siblings.
func mineAcrossSites(ctx context.Context, orch *mining.Orchestrator, sites []string) ([]*model.MineResult, error) {
	results := make([]*model.MineResult, len(sites))

	g, ctx := errgroup.WithContext(ctx)
	for i, site := range sites {
		g.Go(func() error {
			results[i] = orch.Mine(ctx, mineRequest(model.MineRequest{SiteID: site, Batch: true}))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// buildOrchestrator wires the full mining stack from configuration. The
// returned store is the only resource the caller must close.
func buildOrchestrator(ctx context.Context) (*mining.Orchestrator, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	searchClient := prospect.NewClient(cfg.Prospect.Key,
		prospect.WithBaseURL(cfg.Prospect.BaseURL),
		prospect.WithTimeout(time.Duration(cfg.Prospect.TimeoutSecs)*time.Second),
		prospect.WithRateLimit(cfg.Prospect.RateLimit),
	)
	verifier := verify.NewClient(cfg.Verify.Key,
		verify.WithBaseURL(cfg.Verify.BaseURL),
		verify.WithTimeout(time.Duration(cfg.Verify.TimeoutSecs)*time.Second),
	)
	lookup := workmail.NewClient(cfg.Workmail.Key,
		workmail.WithBaseURL(cfg.Workmail.BaseURL),
	)
	generator := emailgen.NewGenerator(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)

	registry := source.NewRegistry()
	registry.Register(source.NewRaw())
	registry.Register(source.NewGenerated(generator))
	registry.Register(source.NewWorkmail(lookup))

	wfCfg, err := loadWaterfallConfig(cfg.Waterfall.ConfigPath)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	executor := waterfall.NewExecutor(wfCfg, registry, verifier)

	var mirror mining.LeadMirror
	sfClient, err := initSalesforce()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	if sfClient != nil {
		mirror = mining.NewSalesforceMirror(sfClient)
	}

	enricher := mining.NewEnricher(st, executor, mirror)
	pages := mining.NewPageProcessor(st, searchClient, enricher)
	orch := mining.NewOrchestrator(st, mining.NewTracker(st), pages, cfg.Mining)

	return orch, st, nil
}

// loadWaterfallConfig falls back to the built-in chain when no config file
// exists at the configured path.
func loadWaterfallConfig(path string) (*waterfall.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zap.L().Info("waterfall config not found, using defaults", zap.String("path", path))
		return waterfall.DefaultConfig(), nil
	}
	return waterfall.LoadConfig(path)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	mineCmd.Flags().StringVar(&mineJobID, "job", "", "mining job ID to run")
	mineCmd.Flags().StringVar(&mineSite, "site", "", "site ID for batch mode")
	mineCmd.Flags().StringSliceVar(&mineSites, "sites", nil, "comma-separated site IDs for multi-site batch mode")
	mineCmd.Flags().BoolVar(&mineBatch, "batch", false, "select the next pending job for the site")
	mineCmd.Flags().IntVar(&mineMaxPages, "max-pages", 0, "page ceiling for this run (default from config)")
	mineCmd.Flags().IntVar(&minePageSize, "page-size", 0, "search page size (default from config)")
	mineCmd.Flags().IntVar(&mineTarget, "target", 0, "stop after this many leads with email (default from config)")
	mineCmd.Flags().StringVar(&mineUser, "user", "", "user ID forwarded to the search API")
	rootCmd.AddCommand(mineCmd)
}
