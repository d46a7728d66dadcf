package model

import "encoding/json"

// Candidate is one normalized search-result entry representing a prospective
// person/organization pair. The search collaborator's heterogeneous envelope
// is flattened into this shape at the client boundary; business logic never
// sees raw envelopes.
type Candidate struct {
	SiteID           string   `json:"site_id,omitempty"`
	ExternalPersonID string   `json:"external_person_id"`
	ExternalRoleID   string   `json:"external_role_id,omitempty"`
	FullName         string   `json:"full_name"`
	FirstName        string   `json:"first_name,omitempty"`
	LastName         string   `json:"last_name,omitempty"`
	CompanyName      string   `json:"company_name,omitempty"`
	CompanyDomain    string   `json:"company_domain,omitempty"`
	CompanyWebsite   string   `json:"company_website,omitempty"`
	CompanyIndustry  string   `json:"company_industry,omitempty"`
	RoleTitle        string   `json:"role_title,omitempty"`
	Location         string   `json:"location,omitempty"`
	Emails           []string `json:"emails,omitempty"`
	LinkedInURL      string   `json:"linkedin_url,omitempty"`

	// Raw retains the collaborator's original payload for audit and lead
	// metadata. Opaque to the pipeline.
	Raw json.RawMessage `json:"raw,omitempty"`
}
