package diag

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser treats the report as opaque content: no structured entries
// are extracted. Summary counts are best-effort scraped from a summary
// element (or failing that, the whole document); when nothing matches,
// counts stay zero with Extracted=false.
type HTMLParser struct{}

var htmlCountPattern = regexp.MustCompile(`(?i)(\d+)\s+(passed|okay|failed|skipped|errors?)`)

func (p *HTMLParser) Parse(raw []byte) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &Error{Kind: KindParseError, Msg: "malformed HTML output", Raw: string(raw), err: err}
	}

	text := elementText(findSummaryNode(doc))
	if text == "" {
		text = elementText(doc)
	}

	r := &Result{}
	for _, m := range htmlCountPattern.FindAllStringSubmatch(text, -1) {
		n, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "passed", "okay":
			r.Summary.Pass = n
		case "failed":
			r.Summary.Fail = n
		case "skipped":
			r.Summary.Skip = n
		case "error", "errors":
			r.Summary.Error = n
		}
		r.Summary.Extracted = true
	}
	if r.Summary.Extracted {
		r.Summary.Total = r.Summary.Pass + r.Summary.Fail + r.Summary.Skip + r.Summary.Error
	}
	return r, nil
}

// findSummaryNode locates the first element whose id or class mentions
// "summary", the predictable spot RISU reports place their totals.
func findSummaryNode(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if (attr.Key == "id" || attr.Key == "class") && strings.Contains(strings.ToLower(attr.Val), "summary") {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findSummaryNode(c); found != nil {
			return found
		}
	}
	return nil
}

func elementText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
