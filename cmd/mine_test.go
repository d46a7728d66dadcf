package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/icp-miner/internal/model"
)

func TestMineRequestAppliesOverrideFlags(t *testing.T) {
	mineMaxPages, minePageSize, mineTarget, mineUser = 5, 10, 3, "user-1"
	t.Cleanup(func() { mineMaxPages, minePageSize, mineTarget, mineUser = 0, 0, 0, "" })

	req := mineRequest(model.MineRequest{SiteID: "site-a", Batch: true})

	assert.Equal(t, "site-a", req.SiteID)
	assert.True(t, req.Batch)
	assert.Equal(t, 5, req.MaxPages)
	assert.Equal(t, 10, req.PageSize)
	assert.Equal(t, 3, req.TargetLeads)
	assert.Equal(t, "user-1", req.UserID)
}

func TestMineRequestZeroFlagsLeaveConfigDefaults(t *testing.T) {
	req := mineRequest(model.MineRequest{JobID: "job-1"})

	// Zero values defer to the mining config inside the orchestrator.
	assert.Zero(t, req.MaxPages)
	assert.Zero(t, req.PageSize)
	assert.Zero(t, req.TargetLeads)
}
