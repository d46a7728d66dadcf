package prospect

// The search API has shipped several response shapes: the result list has
// appeared under "results", "people" and "matches", and pagination fields
// under both snake_case top-level keys and a nested "pagination" object.
// All shape-sniffing is contained here; callers only ever see SearchResponse.
type envelope struct {
	Results []Result `json:"results"`
	People  []Result `json:"people"`
	Matches []Result `json:"matches"`

	Total   *int  `json:"total"`
	HasMore *bool `json:"has_more"`

	Pagination *struct {
		Total   *int  `json:"total"`
		HasMore *bool `json:"has_more"`
	} `json:"pagination"`
}

func (e *envelope) normalize() *SearchResponse {
	out := &SearchResponse{}

	switch {
	case len(e.Results) > 0:
		out.Results = e.Results
	case len(e.People) > 0:
		out.Results = e.People
	case len(e.Matches) > 0:
		out.Results = e.Matches
	}

	out.Total = e.Total
	if out.Total == nil && e.Pagination != nil {
		out.Total = e.Pagination.Total
	}

	switch {
	case e.HasMore != nil:
		out.HasMore = *e.HasMore
	case e.Pagination != nil && e.Pagination.HasMore != nil:
		out.HasMore = *e.Pagination.HasMore
	}

	return out
}
