package render

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// Session notes and stats tables are the only markdown rendered here, so headings
// keep no ids and only code elements may carry a class.
const markdownExtensions = blackfriday.CommonExtensions &^ blackfriday.HeadingIDs

var markdownPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// MarkdownToHTML converts markdown text to sanitized HTML.
func MarkdownToHTML(markdown string) string {
	unsafeHTML := blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(markdownExtensions))
	return string(markdownPolicy.SanitizeBytes(unsafeHTML))
}
