package diag

import (
	"encoding/json"
	"sort"
	"strings"
)

// JSONParser handles RISU's native risu.json schema as well as the
// canonical shape this engine itself emits, so serialized results
// round-trip.
type JSONParser struct{}

type risuDocument struct {
	Checks  []Entry                      `json:"checks"`
	Results map[string]risuPluginOutcome `json:"results"`
}

type risuPluginOutcome struct {
	Name   string `json:"name"`
	Plugin string `json:"plugin"`
	Result struct {
		RC  int    `json:"rc"`
		Out string `json:"out"`
		Err string `json:"err"`
	} `json:"result"`
}

func (p *JSONParser) Parse(raw []byte) (*Result, error) {
	var doc risuDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &Error{Kind: KindParseError, Msg: "malformed JSON output", Raw: string(raw), err: err}
	}

	switch {
	case doc.Results != nil:
		return fromNative(doc.Results), nil
	case doc.Checks != nil:
		r := &Result{Entries: doc.Checks}
		r.Recompute()
		return r, nil
	}
	return nil, &Error{Kind: KindParseError, Msg: "JSON output has neither results nor checks", Raw: string(raw)}
}

// fromNative flattens the keyed results map into ordered entries. The
// map carries no order, so entries are sorted by plugin name to keep
// derivation deterministic.
func fromNative(results map[string]risuPluginOutcome) *Result {
	r := &Result{Entries: make([]Entry, 0, len(results))}
	for id, pr := range results {
		name := pr.Name
		if name == "" {
			name = pr.Plugin
		}
		if name == "" {
			name = id
		}
		detail := strings.TrimSpace(pr.Result.Err)
		if detail == "" {
			detail = strings.TrimSpace(pr.Result.Out)
		}
		r.Entries = append(r.Entries, Entry{
			PluginName: name,
			Status:     statusFromRC(pr.Result.RC),
			Detail:     detail,
		})
	}
	sort.Slice(r.Entries, func(i, j int) bool {
		return r.Entries[i].PluginName < r.Entries[j].PluginName
	})
	r.Recompute()
	return r
}
