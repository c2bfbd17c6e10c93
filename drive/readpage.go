package drive

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxReadPageBytes = 256 * 1024

// ReadPage returns the page content as sanitized markdown (default) or plain
// text. Markdown conversion failures fall back to the text walk.
func (svc *Service) ReadPage(ctx context.Context, id, format string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}

	switch format {
	case "", "markdown", "text":
	default:
		return "", fmt.Errorf("drive: unknown read format %q (want markdown or text)", format)
	}

	raw, err := sess.drv.HTML(ctx)
	if err != nil {
		return "", err
	}
	clean := svc.sanitizer.Sanitize(raw)

	if format == "text" {
		return clampText(htmlToText(clean)), nil
	}

	info, _ := sess.drv.PageInfo(ctx)
	md, err := svc.md.ConvertString(clean, converter.WithDomain(info.URL))
	if err != nil || strings.TrimSpace(md) == "" {
		svc.log.Warn("drive: markdown conversion failed, falling back to text",
			"session", id, "error", err)
		return clampText(htmlToText(clean)), nil
	}
	return clampText(strings.TrimSpace(md)), nil
}

func clampText(s string) string {
	if len(s) <= maxReadPageBytes {
		return s
	}
	cut := s[:maxReadPageBytes]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n[content truncated]"
}

// htmlToText extracts visible text from an HTML document, skipping script,
// style, and boilerplate chrome.
func htmlToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return strings.TrimSpace(src)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr,
				atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				b.WriteByte('\n')
			}
		}
	}
	walk(doc)

	// Collapse the newline runs block elements leave behind.
	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
