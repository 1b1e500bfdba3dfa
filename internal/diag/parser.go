package diag

// Parser converts raw tool output in one format into the canonical
// result. Each supported output format has exactly one strategy, so
// adding a format is a localized change.
type Parser interface {
	Parse(raw []byte) (*Result, error)
}

// ParserFor selects the parser for a declared output format. The empty
// format means JSON, the tool's default.
func ParserFor(format string) (Parser, error) {
	switch format {
	case "", FormatJSON:
		return &JSONParser{}, nil
	case FormatText:
		return &TextParser{}, nil
	case FormatHTML:
		return &HTMLParser{}, nil
	}
	return nil, Errorf(KindInvalidOptions, "no parser for output format %q", format)
}
