package diag

import (
	"regexp"
	"strings"
)

// TextParser extracts per-plugin status lines from RISU's plain text
// report. Lines that don't look like a status line are preserved as
// free-form detail on the most recent entry rather than dropped.
type TextParser struct{}

var textStatusLine = regexp.MustCompile(`^(.+?)\s*:\s*([A-Za-z]+)\s*(.*)$`)

var textStatusWords = map[string]Status{
	"okay":    StatusPass,
	"ok":      StatusPass,
	"pass":    StatusPass,
	"passed":  StatusPass,
	"info":    StatusPass,
	"fail":    StatusFail,
	"failed":  StatusFail,
	"skip":    StatusSkip,
	"skipped": StatusSkip,
	"error":   StatusError,
}

func (p *TextParser) Parse(raw []byte) (*Result, error) {
	r := &Result{}
	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}

		if m := textStatusLine.FindStringSubmatch(trimmed); m != nil {
			if status, ok := textStatusWords[strings.ToLower(m[2])]; ok {
				r.Entries = append(r.Entries, Entry{
					PluginName: strings.TrimSpace(m[1]),
					Status:     status,
					Detail:     strings.TrimSpace(m[3]),
				})
				continue
			}
		}

		// Continuation or free-form line: attach to the last entry.
		if n := len(r.Entries); n > 0 {
			last := &r.Entries[n-1]
			if last.Detail != "" {
				last.Detail += "\n"
			}
			last.Detail += strings.TrimSpace(trimmed)
		}
	}

	if len(r.Entries) == 0 {
		return nil, &Error{Kind: KindParseError, Msg: "no recognizable status lines in text output", Raw: string(raw)}
	}
	r.Recompute()
	return r, nil
}
