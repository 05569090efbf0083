// Package outcome names the ways a per-match stage can fail and maps each
// failure to the text shown in its place.
package outcome

// Reason identifies why a stage produced no real content.
type Reason int

const (
	OK Reason = iota
	ExternalFetchFailed
	PostFetchFailed
	SummaryFailed
)

var reasonNames = map[Reason]string{
	OK:                  "ok",
	ExternalFetchFailed: "external_fetch_failed",
	PostFetchFailed:     "post_fetch_failed",
	SummaryFailed:       "summary_failed",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "unknown"
}

// Failed reports whether r is anything other than OK.
func (r Reason) Failed() bool {
	return r != OK
}

// Placeholders is the text substituted for each failure reason.
var Placeholders = map[Reason]string{
	ExternalFetchFailed: "failed to scrape text with hit url",
	PostFetchFailed:     "failed to scrape text with post url",
	SummaryFailed:       "unexpected summary generated",
}

// Placeholder returns the display text for r, or "" for OK.
func Placeholder(r Reason) string {
	return Placeholders[r]
}
