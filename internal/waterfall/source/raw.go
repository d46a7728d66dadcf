package source

import (
	"context"
	"strings"

	"github.com/sells-group/icp-miner/internal/model"
)

// SourceRaw is the chain name for addresses carried on the search result.
const SourceRaw = "raw"

type rawSource struct{}

// NewRaw returns the source that surfaces addresses already present on the
// search result payload. It is free, so it runs first in the default chain.
func NewRaw() Source {
	return rawSource{}
}

func (rawSource) Name() string    { return SourceRaw }
func (rawSource) Discovers() bool { return false }

func (rawSource) Candidates(_ context.Context, c *model.Candidate, _ []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, e := range c.Emails {
		addr := strings.ToLower(strings.TrimSpace(e))
		if addr == "" || !strings.Contains(addr, "@") {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}
