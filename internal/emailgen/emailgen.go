// Package emailgen generates candidate work-email addresses for a person at a
// company using common corporate address patterns, with a model ranking the
// patterns most likely for the company in question.
package emailgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/pkg/anthropic"
)

const systemPrompt = `You generate likely corporate email addresses.
Given a person's name, their company's email domain, and context about their
role, output the most probable work email addresses for that person, one per
line, most likely first. Use only common corporate patterns (first.last,
flast, first, f.last, firstlast, first_last). Output at most 5 addresses and
nothing else: no numbering, no commentary.`

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Generator produces candidate addresses for enrichment.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewGenerator creates a Generator using the given model ID.
func NewGenerator(client anthropic.Client, modelID string) *Generator {
	return &Generator{
		client:    client,
		model:     modelID,
		maxTokens: 256,
	}
}

// Generate returns candidate addresses for the person, most likely first.
// Returns an empty slice without error when no domain can be derived.
func (g *Generator) Generate(ctx context.Context, c *model.Candidate) ([]string, error) {
	domain := DeriveDomain(c)
	if domain == "" {
		zap.L().Debug("no domain derivable, skipping generation",
			zap.String("person", c.FullName),
			zap.String("company", c.CompanyName))
		return nil, nil
	}

	name := c.FullName
	if name == "" {
		name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	if name == "" {
		return nil, nil
	}

	temp := 0.0
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(c, name, domain)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "emailgen: generate")
	}
	resp.Usage.LogCost(g.model, "emailgen")

	return parseAddresses(resp.Text(), domain), nil
}

// buildPrompt assembles the user message: name and domain, the site the
// candidate is mined for, and whatever role context the search surfaced.
func buildPrompt(c *model.Candidate, name, domain string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nDomain: %s", name, domain)
	if c.SiteID != "" {
		fmt.Fprintf(&b, "\nSite: %s", c.SiteID)
	}

	var details []string
	if c.RoleTitle != "" {
		details = append(details, "Role: "+c.RoleTitle)
	}
	if c.CompanyName != "" {
		details = append(details, "Company: "+c.CompanyName)
	}
	if c.Location != "" {
		details = append(details, "Location: "+c.Location)
	}
	if len(details) > 0 {
		fmt.Fprintf(&b, "\nContext:\n%s", strings.Join(details, "\n"))
	}
	return b.String()
}

// parseAddresses extracts well-formed addresses on the expected domain,
// preserving order and dropping duplicates. Model output is untrusted: lines
// that are not plain addresses on the derived domain are discarded.
func parseAddresses(text, domain string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		addr := strings.ToLower(strings.TrimSpace(line))
		if !emailPattern.MatchString(addr) {
			continue
		}
		if !strings.HasSuffix(addr, "@"+domain) {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
