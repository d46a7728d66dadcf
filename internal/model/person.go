package model

import "time"

// Person is the durable identity record for a prospect, keyed by the search
// source's external person id with a normalized name+company fallback.
// Emails and phones accumulate over time; records are never deleted by the
// mining pipeline.
type Person struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"external_id,omitempty"`
	ExternalRoleID string    `json:"external_role_id,omitempty"`
	FullName       string    `json:"full_name"`
	NormalizedKey  string    `json:"normalized_key,omitempty"` // fold(name)|fold(company)
	CompanyName    string    `json:"company_name,omitempty"`
	RoleTitle      string    `json:"role_title,omitempty"`
	Location       string    `json:"location,omitempty"`
	LinkedInURL    string    `json:"linkedin_url,omitempty"`
	Emails         []string  `json:"emails,omitempty"`
	Phones         []string  `json:"phones,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Lead is a site-scoped sales lead materialized from a matched candidate.
// At most one lead exists per (person, site) pair, enforced by a storage
// uniqueness constraint.
type Lead struct {
	ID          string            `json:"id"`
	SiteID      string            `json:"site_id"`
	PersonID    string            `json:"person_id"`
	CompanyID   *string           `json:"company_id,omitempty"`
	SegmentID   *string           `json:"segment_id,omitempty"`
	FullName    string            `json:"full_name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	CompanyName string            `json:"company_name,omitempty"`
	RoleTitle   string            `json:"role_title,omitempty"`
	Location    string            `json:"location,omitempty"`
	LinkedInURL string            `json:"linkedin_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// LeadSourceICPMining marks leads produced by this pipeline in lead metadata.
const LeadSourceICPMining = "icp_mining"

// Company is a site-scoped organization record, upserted by name.
// Best-effort: company failures never block lead creation.
type Company struct {
	ID          string    `json:"id"`
	SiteID      string    `json:"site_id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain,omitempty"`
	Website     string    `json:"website,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
