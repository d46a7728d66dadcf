package waterfall

// Attempt records one address tried against the validator.
type Attempt struct {
	Source  string `json:"source"`
	Address string `json:"address"`
	Result  string `json:"result"` // validator verdict, or "error"
	Usable  bool   `json:"usable"`
}

// Resolution is the outcome of running the waterfall for one candidate.
type Resolution struct {
	Resolved bool      `json:"resolved"`
	Email    string    `json:"email,omitempty"`
	Source   string    `json:"source,omitempty"`
	Attempts []Attempt `json:"attempts"`

	// Discovered holds addresses surfaced by discovery sources, validated or
	// not. They are merged onto the person record so later runs can retry
	// them without paying for the lookup again.
	Discovered []string `json:"discovered,omitempty"`
}
