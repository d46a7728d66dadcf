package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-miner/internal/emailgen"
	"github.com/sells-group/icp-miner/internal/model"
)

// SourceGenerated is the chain name for pattern-generated addresses.
const SourceGenerated = "generated"

type generatedSource struct {
	gen *emailgen.Generator
}

// NewGenerated returns the source backed by the address pattern generator.
func NewGenerated(gen *emailgen.Generator) Source {
	return &generatedSource{gen: gen}
}

func (*generatedSource) Name() string    { return SourceGenerated }
func (*generatedSource) Discovers() bool { return false }

func (s *generatedSource) Candidates(ctx context.Context, c *model.Candidate, tried []string) ([]string, error) {
	addrs, err := s.gen.Generate(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "source: generate addresses")
	}
	return withoutTried(addrs, tried), nil
}

func withoutTried(addrs, tried []string) []string {
	if len(tried) == 0 {
		return addrs
	}
	seen := make(map[string]struct{}, len(tried))
	for _, a := range tried {
		seen[a] = struct{}{}
	}
	var out []string
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}
