package diag

// Status of a single diagnostic check in the canonical result.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusSkip  Status = "skip"
	StatusError Status = "error"
)

// RISU per-plugin return codes.
const (
	rcOkay    = 0
	rcOkayAlt = 10
	rcFailed  = 20
	rcSkipped = 30
	rcInfo    = 40
)

// Entry is one check's outcome, canonical regardless of what format the
// tool emitted.
type Entry struct {
	PluginName string `json:"name"`
	Status     Status `json:"status"`
	Detail     string `json:"detail,omitempty"`
}

// Summary holds derived counts. Extracted is false only for opaque
// formats (html) where no counts could be scraped.
type Summary struct {
	Pass      int  `json:"pass"`
	Fail      int  `json:"fail"`
	Skip      int  `json:"skip"`
	Error     int  `json:"error"`
	Total     int  `json:"total"`
	Extracted bool `json:"extracted"`
}

// Result is the canonical, format-independent diagnostic result. Entry
// order follows the tool's output order.
type Result struct {
	Entries []Entry `json:"checks"`
	Summary Summary `json:"summary"`
}

// Recompute tallies the summary from entries. Counts are never trusted
// from the tool when entries are available, so the identity
// pass+fail+skip+error == total == len(entries) always holds.
func (r *Result) Recompute() {
	s := Summary{Extracted: true}
	for _, e := range r.Entries {
		switch e.Status {
		case StatusPass:
			s.Pass++
		case StatusFail:
			s.Fail++
		case StatusSkip:
			s.Skip++
		default:
			s.Error++
		}
		s.Total++
	}
	r.Summary = s
}

// statusFromRC maps a RISU plugin return code onto the canonical status.
// Informational results count as passes; codes outside the documented
// set mean the plugin itself misbehaved.
func statusFromRC(rc int) Status {
	switch rc {
	case rcOkay, rcOkayAlt, rcInfo:
		return StatusPass
	case rcFailed:
		return StatusFail
	case rcSkipped:
		return StatusSkip
	default:
		return StatusError
	}
}
