package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-miner/internal/model"
)

func jobWith(id string, status model.JobStatus, total *int, processed int) model.MiningJob {
	return model.MiningJob{
		ID:               id,
		Status:           status,
		TotalTargets:     total,
		ProcessedTargets: processed,
	}
}

func total(n int) *int { return &n }

func TestSelectNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		jobs []model.MiningJob
		want string // "" means nil
	}{
		{
			name: "empty list",
			jobs: nil,
			want: "",
		},
		{
			name: "running beats pending regardless of remaining volume",
			jobs: []model.MiningJob{
				jobWith("a", model.JobStatusPending, total(100), 10),
				jobWith("b", model.JobStatusRunning, total(50), 40),
			},
			want: "b",
		},
		{
			name: "within tier more remaining wins",
			jobs: []model.MiningJob{
				jobWith("a", model.JobStatusPending, total(100), 90),
				jobWith("b", model.JobStatusPending, total(100), 10),
			},
			want: "b",
		},
		{
			name: "unknown total treated as unbounded",
			jobs: []model.MiningJob{
				jobWith("a", model.JobStatusPending, total(1000), 0),
				jobWith("b", model.JobStatusPending, nil, 0),
			},
			want: "b",
		},
		{
			name: "terminal jobs never selected",
			jobs: []model.MiningJob{
				jobWith("a", model.JobStatusCompleted, total(10), 0),
				jobWith("b", model.JobStatusFailed, nil, 0),
			},
			want: "",
		},
		{
			name: "terminal filtered before ranking",
			jobs: []model.MiningJob{
				jobWith("a", model.JobStatusCompleted, nil, 0),
				jobWith("b", model.JobStatusPending, total(5), 0),
			},
			want: "b",
		},
		{
			name: "running with known total beats pending with unknown",
			jobs: []model.MiningJob{
				jobWith("a", model.JobStatusPending, nil, 0),
				jobWith("b", model.JobStatusRunning, total(50), 49),
			},
			want: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SelectNext(tt.jobs)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestSelectNextNeverReturnsTerminal(t *testing.T) {
	t.Parallel()

	// Property from the job lifecycle: whatever the mix, a terminal job is
	// never advanced again.
	statuses := []model.JobStatus{
		model.JobStatusPending, model.JobStatusRunning,
		model.JobStatusCompleted, model.JobStatusFailed,
	}
	var jobs []model.MiningJob
	for i, s := range statuses {
		jobs = append(jobs, jobWith(string(rune('a'+i)), s, total(10*i), i))
	}

	got := SelectNext(jobs)
	require.NotNil(t, got)
	assert.False(t, got.Status.IsTerminal())
}
