package diag

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// Plugin is one enumerable check from the tool's listing.
type Plugin struct {
	Name        string `json:"name"`
	Backend     string `json:"backend,omitempty"`
	Path        string `json:"plugin,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

type rawPlugin struct {
	Backend     string `json:"backend"`
	Plugin      string `json:"plugin"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Name        string `json:"name"`
}

// ParseCatalog extracts the plugin catalog from list-mode stdout. The
// tool prints one dict per line with single-quoted keys; malformed
// lines are skipped. Order follows the tool's output.
func ParseCatalog(raw string) []Plugin {
	var plugins []Plugin
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.Contains(line, "plugin") {
			continue
		}

		var rp rawPlugin
		if err := json.Unmarshal([]byte(strings.ReplaceAll(line, "'", `"`)), &rp); err != nil {
			continue
		}

		name := rp.Name
		if name == "" && rp.Plugin != "" {
			name = strings.TrimSuffix(filepath.Base(rp.Plugin), filepath.Ext(rp.Plugin))
		}
		plugins = append(plugins, Plugin{
			Name:        name,
			Backend:     rp.Backend,
			Path:        rp.Plugin,
			Category:    rp.Category,
			Description: rp.Description,
		})
	}
	return plugins
}

// CountByCategory tallies plugins per category for the list response.
func CountByCategory(plugins []Plugin) map[string]int {
	byCategory := make(map[string]int)
	for _, p := range plugins {
		cat := p.Category
		if cat == "" {
			cat = "unknown"
		}
		byCategory[cat]++
	}
	return byCategory
}
