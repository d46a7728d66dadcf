package registry

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func makeProfilePage(id, name, siteID string, titles []string) notionapi.Page {
	props := notionapi.Properties{
		"Name": &notionapi.TitleProperty{
			Title: []notionapi.RichText{{PlainText: name}},
		},
		"SiteID": &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: siteID}},
		},
		"EmployeeRange": &notionapi.SelectProperty{
			Select: notionapi.Option{Name: "51-200"},
		},
		"Keywords": &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: "b2b saas"}},
		},
	}

	var opts []notionapi.Option
	for _, t := range titles {
		opts = append(opts, notionapi.Option{Name: t})
	}
	props["Titles"] = &notionapi.MultiSelectProperty{MultiSelect: opts}
	props["Seniorities"] = &notionapi.MultiSelectProperty{
		MultiSelect: []notionapi.Option{{Name: "director"}, {Name: "vp"}},
	}

	return notionapi.Page{
		ID:         notionapi.ObjectID(id),
		Properties: props,
	}
}

func TestLoadProfiles(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeProfilePage("p1", "SaaS Sales Leaders", "site-a", []string{"VP Sales", "CRO"}),
			},
			HasMore: false,
		}, nil).Once()

	profiles, err := LoadProfiles(ctx, mc, "db-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "SaaS Sales Leaders", p.Name)
	assert.Equal(t, "site-a", p.SiteID)
	assert.Equal(t, "p1", p.NotionPageID)
	assert.Equal(t, []string{"VP Sales", "CRO"}, p.Titles)
	assert.Equal(t, []string{"director", "vp"}, p.Seniorities)
	assert.Equal(t, "51-200", p.EmployeeRange)
	assert.Equal(t, "b2b saas", p.Keywords)
	mc.AssertExpectations(t)
}

func TestLoadProfilesSkipsMalformedPages(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	missingSite := makeProfilePage("p2", "No Site", "", nil)
	missingName := makeProfilePage("p3", "", "site-a", nil)

	mc.On("QueryDatabase", ctx, "db-1", mock.Anything).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeProfilePage("p1", "Good", "site-a", nil),
				missingSite,
				missingName,
			},
			HasMore: false,
		}, nil).Once()

	profiles, err := LoadProfiles(ctx, mc, "db-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Good", profiles[0].Name)
}

func TestLoadProfilesQueryError(t *testing.T) {
	mc := new(mockNotionClient)
	mc.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).
		Return(nil, assert.AnError).Once()

	profiles, err := LoadProfiles(context.Background(), mc, "db-1")
	assert.Error(t, err)
	assert.Nil(t, profiles)
}
