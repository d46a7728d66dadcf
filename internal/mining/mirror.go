package mining

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/pkg/salesforce"
)

// SalesforceMirror pushes created leads into Salesforce, skipping addresses
// that already have a Lead there.
type SalesforceMirror struct {
	client salesforce.Client
}

// NewSalesforceMirror creates a mirror over the given client.
func NewSalesforceMirror(client salesforce.Client) *SalesforceMirror {
	return &SalesforceMirror{client: client}
}

// Mirror implements LeadMirror.
func (m *SalesforceMirror) Mirror(ctx context.Context, lead *model.Lead) error {
	if lead.Email != "" {
		existing, err := salesforce.FindLeadByEmail(ctx, m.client, lead.Email)
		if err != nil {
			return eris.Wrap(err, "mirror: duplicate check")
		}
		if existing != nil {
			return nil
		}
	}

	first, last := splitName(lead.FullName)
	company := lead.CompanyName
	if company == "" {
		company = "Unknown"
	}

	fields := map[string]any{
		"FirstName":  first,
		"LastName":   last,
		"Email":      lead.Email,
		"Company":    company,
		"Title":      lead.RoleTitle,
		"LeadSource": model.LeadSourceICPMining,
	}
	if _, err := salesforce.CreateLead(ctx, m.client, fields); err != nil {
		return eris.Wrap(err, "mirror: create lead")
	}
	return nil
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", "Unknown"
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
