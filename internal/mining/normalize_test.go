package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/icp-miner/pkg/prospect"
)

func TestNormalizedKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		full    string
		company string
		want    string
	}{
		{"plain", "Jane Doe", "Acme", "jane doe|acme"},
		{"case and spacing folded", "  JANE   DOE ", " ACME  Inc ", "jane doe|acme inc"},
		{"diacritics stripped", "José García", "Añejo Café", "jose garcia|anejo cafe"},
		{"empty name yields no key", "", "Acme", ""},
		{"empty company keeps pipe", "Jane Doe", "", "jane doe|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizedKey(tt.full, tt.company))
		})
	}
}

func TestNormalizedKeyEquivalentSpellings(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		NormalizedKey("José García", "Acme"),
		NormalizedKey("jose garcia", "ACME"),
	)
}

func TestCandidateFromResult(t *testing.T) {
	t.Parallel()

	r := searchResult("ext-1", "Jane Doe", "Acme", "acme.io", "jane@acme.io")
	r.Person.Location = "Austin, TX"
	r.Organization.Website = "https://acme.io"
	r.Organization.Industry = "Software"

	c := CandidateFromResult(&r, "site-a")
	assert.Equal(t, "site-a", c.SiteID)
	assert.Equal(t, "ext-1", c.ExternalPersonID)
	assert.Equal(t, "ext-1-role", c.ExternalRoleID)
	assert.Equal(t, "Jane Doe", c.FullName)
	assert.Equal(t, "Acme", c.CompanyName)
	assert.Equal(t, "acme.io", c.CompanyDomain)
	assert.Equal(t, "https://acme.io", c.CompanyWebsite)
	assert.Equal(t, "Software", c.CompanyIndustry)
	assert.Equal(t, "VP Sales", c.RoleTitle)
	assert.Equal(t, "Austin, TX", c.Location)
	assert.Equal(t, []string{"jane@acme.io"}, c.Emails)
}

func TestCandidateFromResultComposesFullName(t *testing.T) {
	t.Parallel()

	r := prospect.Result{
		Person: prospect.Person{ID: "ext-2", FirstName: "Jane", LastName: "Doe"},
	}
	c := CandidateFromResult(&r, "site-a")
	assert.Equal(t, "Jane Doe", c.FullName)
}
