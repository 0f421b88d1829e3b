package render

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"chunklog/pkg/textrun"
)

// HTMLOptions describe a standalone HTML export.
type HTMLOptions struct {
	Title string
	Runs  []textrun.TextRun
	Stats []SeriesStats
	// Precision of the numbers in the stats section.
	Precision int
	// Notes is free markdown shown above the output, e.g. the capture's session data.
	Notes string
}

var runPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("span")
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("span")
	p.AllowDataAttributes()
	return p
}()

// RunsHTML renders runs as spans carrying their color classes ("fg31 bg40"), a "broken"
// class for undecodable bytes and their timestamp range as data attributes.
func RunsHTML(runs []textrun.TextRun) string {
	var b strings.Builder
	for _, run := range runs {
		class, text := run.Style.Classes(), caretEscape(run.Text)
		if run.Broken {
			class, text = class+" broken", run.Text
		}
		fmt.Fprintf(&b, `<span class="%s" data-ts-begin="%s" data-ts-end="%s">%s</span>`,
			class,
			strconv.FormatFloat(run.Begin, 'f', -1, 64),
			strconv.FormatFloat(run.End, 'f', -1, 64),
			html.EscapeString(text),
		)
	}
	return runPolicy.Sanitize(b.String())
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 1em; }
pre.output { background: #000; color: #ccc; padding: 0.5em; white-space: pre-wrap; }
.broken { background: #500; color: #fff; border-radius: 2px; }
.broken::before { content: "\\x"; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 0.2em 0.6em; text-align: right; }
{{range .Palette}}{{.}}
{{end}}</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{.Notes}}
<pre class="output">{{.Output}}</pre>
{{if .Stats}}<h2>Reports</h2>
{{.Stats}}{{end}}
</body>
</html>
`))

// basicColors are the 16 terminal colors, indexed like SGR parameters 30–37 then 90–97.
var basicColors = []string{
	"#000000", "#cd3131", "#0dbc79", "#e5e510", "#2472c8", "#bc3fbc", "#11a8cd", "#e5e5e5",
	"#666666", "#f14c4c", "#23d18b", "#f5f543", "#3b8eea", "#d670d6", "#29b8db", "#ffffff",
}

func palette() []template.CSS {
	var rules []template.CSS
	for i, color := range basicColors {
		fg, bg := 30+i, 40+i
		if i >= 8 {
			fg, bg = 90+i-8, 100+i-8
		}
		rules = append(rules,
			template.CSS(fmt.Sprintf(".fg%d { color: %s; }", fg, color)),
			template.CSS(fmt.Sprintf(".bg%d { background: %s; }", bg, color)),
		)
	}
	// the default colors follow the page
	rules = append(rules, ".fg37 { color: inherit; }", ".bg40 { background: inherit; }")
	return rules
}

// HTML writes a standalone page with the decoded output and, when given, the stats.
func HTML(w io.Writer, opts HTMLOptions) error {
	data := struct {
		Title   string
		Palette []template.CSS
		Notes   template.HTML
		Output  template.HTML
		Stats   template.HTML
	}{
		Title:   opts.Title,
		Palette: palette(),
		// both fragments are sanitized by bluemonday
		Notes:  template.HTML(MarkdownToHTML(opts.Notes)),
		Output: template.HTML(RunsHTML(opts.Runs)),
	}
	if len(opts.Stats) > 0 {
		data.Stats = template.HTML(MarkdownToHTML(StatsMarkdown(opts.Stats, opts.Precision)))
	}

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	return nil
}
