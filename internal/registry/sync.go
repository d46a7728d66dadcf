package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/store"
	"github.com/sells-group/icp-miner/pkg/notion"
)

// SyncFromNotion loads active profiles from the Notion database and upserts
// them into the store. Returns the number of profiles synced.
func SyncFromNotion(ctx context.Context, client notion.Client, dbID string, st store.Store) (int, error) {
	profiles, err := LoadProfiles(ctx, client, dbID)
	if err != nil {
		return 0, eris.Wrap(err, "registry: sync from notion")
	}

	synced := 0
	for i := range profiles {
		// Key synced profiles by their Notion page so re-syncs update in
		// place instead of inserting duplicates.
		if profiles[i].ID == "" {
			profiles[i].ID = profiles[i].NotionPageID
		}
		if err := st.UpsertProfile(ctx, &profiles[i]); err != nil {
			return synced, eris.Wrapf(err, "registry: upsert profile %s", profiles[i].Name)
		}
		synced++
	}

	zap.L().Info("profile registry synced",
		zap.String("database_id", dbID),
		zap.Int("profiles", synced),
	)
	return synced, nil
}
