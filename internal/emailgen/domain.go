package emailgen

import (
	"net/url"
	"strings"

	"github.com/sells-group/icp-miner/internal/model"
)

// DeriveDomain resolves the company email domain for a candidate, preferring
// the explicit organization domain, then the website host, then a lowercase
// company-name fallback with non-alphanumerics stripped and ".com" appended.
func DeriveDomain(c *model.Candidate) string {
	if d := cleanDomain(c.CompanyDomain); d != "" {
		return d
	}
	if d := hostFromURL(c.CompanyWebsite); d != "" {
		return d
	}
	return domainFromName(c.CompanyName)
}

func cleanDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "www.")
	if d == "" || !strings.Contains(d, ".") {
		return ""
	}
	return d
}

func hostFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return cleanDomain(u.Hostname())
}

func domainFromName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + ".com"
}
