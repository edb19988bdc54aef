package export

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kimhsiao/leadbook/internal/models"
)

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; }
table { border-collapse: collapse; margin: 0 auto; }
th, td { border: 1px solid black; padding: 3px 6px; text-align: center; }
th { background: grey; color: whitesmoke; padding-bottom: 12px; }
td { background: beige; }
</style>
</head>
<body>
%s</body>
</html>
`

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ExportHTML writes a standalone HTML page holding the report table.
func (s *Service) ExportHTML(leads []models.Lead, path string) (*Result, error) {
	start := s.now()
	body, err := s.renderHTMLBody(leads)
	if err != nil {
		return nil, err
	}
	size, err := writeFile(path, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, htmlPage, html.EscapeString(s.opts.Title), body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.result(FormatHTML, path, len(leads), size, start), nil
}

// renderHTMLBody builds the report as a Markdown table and converts it.
func (s *Service) renderHTMLBody(leads []models.Lead) ([]byte, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", escapeMarkdown(s.opts.Title))
	writeMarkdownRow(&md, Columns)
	md.WriteString(strings.Repeat("| :---: ", len(Columns)) + "|\n")
	for _, l := range leads {
		writeMarkdownRow(&md, Row(l))
	}

	var out bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &out); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	return out.Bytes(), nil
}

func writeMarkdownRow(md *strings.Builder, cells []string) {
	for _, c := range cells {
		md.WriteString("| ")
		md.WriteString(escapeMarkdown(c))
		md.WriteString(" ")
	}
	md.WriteString("|\n")
}

// escapeMarkdown makes s literal inside a table cell: ASCII punctuation is
// backslash-escaped and line breaks become spaces.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\r':
		case r == '\n':
			b.WriteByte(' ')
		case r < 0x80 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
