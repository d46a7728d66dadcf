package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-miner/internal/emailgen"
	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/pkg/workmail"
)

// SourceWorkmail is the chain name for the paid lookup provider.
const SourceWorkmail = "workmail"

type workmailSource struct {
	client workmail.Client
}

// NewWorkmail returns the source backed by the work-email lookup provider.
// It runs last in the default chain because each lookup is billed.
func NewWorkmail(client workmail.Client) Source {
	return &workmailSource{client: client}
}

func (*workmailSource) Name() string { return SourceWorkmail }

// Discovers is true: lookup results are kept on the person record whether or
// not validation accepts them, so the lookup is never paid for twice.
func (*workmailSource) Discovers() bool { return true }

func (s *workmailSource) Candidates(ctx context.Context, c *model.Candidate, tried []string) ([]string, error) {
	resp, err := s.client.Lookup(ctx, workmail.LookupRequest{
		FullName:      c.FullName,
		CompanyName:   c.CompanyName,
		CompanyDomain: emailgen.DeriveDomain(c),
		LinkedInURL:   c.LinkedInURL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: workmail lookup")
	}

	var addrs []string
	for _, a := range resp.Addresses() {
		addrs = append(addrs, strings.ToLower(strings.TrimSpace(a)))
	}
	return withoutTried(addrs, tried), nil
}
