package mining

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/icp-miner/internal/model"
	"github.com/sells-group/icp-miner/pkg/prospect"
)

// foldTransformer strips diacritics so "José" and "Jose" produce the same
// identity key.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// NormalizedKey builds the fallback identity key for a person without an
// external id: folded name and folded company joined by a pipe.
func NormalizedKey(fullName, companyName string) string {
	name := fold(fullName)
	if name == "" {
		return ""
	}
	return name + "|" + fold(companyName)
}

// CandidateFromResult flattens one search result entry into the canonical
// Candidate shape, stamped with the site it is being mined for. All
// envelope-shape tolerance lives in the prospect client; this adapter only
// maps fields.
func CandidateFromResult(r *prospect.Result, siteID string) model.Candidate {
	fullName := r.Person.FullName
	if fullName == "" {
		fullName = strings.TrimSpace(r.Person.FirstName + " " + r.Person.LastName)
	}

	return model.Candidate{
		SiteID:           siteID,
		ExternalPersonID: r.Person.ID,
		ExternalRoleID:   r.RoleID,
		FullName:         fullName,
		FirstName:        r.Person.FirstName,
		LastName:         r.Person.LastName,
		CompanyName:      r.Organization.Name,
		CompanyDomain:    r.Organization.Domain,
		CompanyWebsite:   r.Organization.Website,
		CompanyIndustry:  r.Organization.Industry,
		RoleTitle:        r.RoleTitle,
		Location:         r.Person.Location,
		Emails:           r.Person.Emails,
		LinkedInURL:      r.Person.LinkedInURL,
		Raw:              r.Raw(),
	}
}
