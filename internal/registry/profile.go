// Package registry loads ICP profile definitions from the Notion profile
// database and keeps the local store in sync with them.
package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/pkg/notion"
)

// LoadProfiles queries the Notion profile database for all active ICP
// profiles and returns them as model values.
func LoadProfiles(ctx context.Context, client notion.Client, dbID string) ([]model.ICPProfile, error) {
	pages, err := notion.QueryActiveProfiles(ctx, client, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load profiles")
	}

	var profiles []model.ICPProfile
	for _, p := range pages {
		prof, err := parseProfilePage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed profile page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		profiles = append(profiles, prof)
	}

	return profiles, nil
}

func parseProfilePage(p notionapi.Page) (model.ICPProfile, error) {
	prof := model.ICPProfile{
		NotionPageID: string(p.ID),
	}

	// Name (title)
	if prop, ok := p.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			prof.Name = plainText(tp.Title)
		}
	}

	// SiteID (rich_text)
	if prop, ok := p.Properties["SiteID"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			prof.SiteID = plainText(rtp.RichText)
		}
	}

	// Titles (multi_select)
	if prop, ok := p.Properties["Titles"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				prof.Titles = append(prof.Titles, opt.Name)
			}
		}
	}

	// Seniorities (multi_select)
	if prop, ok := p.Properties["Seniorities"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				prof.Seniorities = append(prof.Seniorities, opt.Name)
			}
		}
	}

	// Locations (multi_select)
	if prop, ok := p.Properties["Locations"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				prof.Locations = append(prof.Locations, opt.Name)
			}
		}
	}

	// Industries (multi_select)
	if prop, ok := p.Properties["Industries"]; ok {
		if msp, ok := prop.(*notionapi.MultiSelectProperty); ok {
			for _, opt := range msp.MultiSelect {
				prof.Industries = append(prof.Industries, opt.Name)
			}
		}
	}

	// EmployeeRange (select)
	if prop, ok := p.Properties["EmployeeRange"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			prof.EmployeeRange = sp.Select.Name
		}
	}

	// Keywords (rich_text)
	if prop, ok := p.Properties["Keywords"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			prof.Keywords = plainText(rtp.RichText)
		}
	}

	if prof.Name == "" {
		return prof, eris.New("missing Name property")
	}
	if prof.SiteID == "" {
		return prof, eris.New("missing SiteID property")
	}

	return prof, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
