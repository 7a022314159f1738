package marketplace

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlToText strips markup from a legacy HTML description, collapsing
// whitespace so the result reads like the plain_text field.
func htmlToText(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Not parseable as HTML; return as-is rather than losing the text.
		return strings.TrimSpace(html)
	}

	doc.Find("script, style").Remove()

	text := doc.Text()
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
