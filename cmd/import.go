package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/ingest"
	"github.com/sells-group/icp-miner/internal/registry"
	"github.com/sells-group/icp-miner/pkg/notion"
)

var (
	importFile string
	importSite string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Seed mining jobs and ICP profiles from an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		seed, err := ingest.ReadWorkbook(importFile, importSite)
		if err != nil {
			return err
		}

		for i := range seed.Profiles {
			if err := st.UpsertProfile(ctx, &seed.Profiles[i]); err != nil {
				return eris.Wrapf(err, "upsert profile %s", seed.Profiles[i].Name)
			}
		}

		var created int64
		if len(seed.Jobs) > 0 {
			created, err = st.SeedJobs(ctx, seed.Jobs)
			if err != nil {
				return eris.Wrap(err, "seed jobs")
			}
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.Int("profiles", len(seed.Profiles)),
			zap.Int64("jobs_created", created),
		)
		return nil
	},
}

// -- sync (Notion profile definitions) --

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync ICP profile definitions from Notion into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (ICPMINER_NOTION_TOKEN)")
		}
		if cfg.Notion.ProfileDB == "" {
			return eris.New("notion profile DB ID is required (ICPMINER_NOTION_PROFILE_DB)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		notionClient := notion.NewClient(cfg.Notion.Token)

		synced, err := registry.SyncFromNotion(ctx, notionClient, cfg.Notion.ProfileDB, st)
		if err != nil {
			return eris.Wrap(err, "sync profiles")
		}

		zap.L().Info("profile sync complete", zap.Int("synced", synced))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to XLSX workbook (required)")
	importCmd.Flags().StringVar(&importSite, "site", "", "site ID applied to rows without one")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
}
