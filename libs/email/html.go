package email

import (
	"html"
	"strings"
)

func plainToHTML(body string) string {
	paragraphs := strings.Split(strings.TrimSpace(body), "\n\n")
	var b strings.Builder
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
