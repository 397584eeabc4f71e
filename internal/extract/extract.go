// Package extract turns uploaded files into plain text for ingestion.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
)

var whitespace = regexp.MustCompile(`[ \t\f\v]+`)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Supported lists the file extensions Text accepts.
var Supported = []string{".txt", ".md", ".html", ".htm"}

// Text extracts plain text from a file by its extension.
func Text(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".txt", ".md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s is not valid UTF-8: %w", filename, apperr.ErrValidation)
		}
		return normalize(string(data)), nil
	case ".html", ".htm":
		return HTML(data)
	default:
		return "", fmt.Errorf("unsupported file type %q, allowed: %s: %w", ext, strings.Join(Supported, ", "), apperr.ErrValidation)
	}
}

// HTML returns the readable body text of a page, dropping scripts, styles and
// navigation chrome.
func HTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", apperr.ErrValidation)
	}

	doc.Find("script, style, nav, footer, header, aside, noscript").Remove()
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, br").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return normalize(doc.Find("body").Text()), nil
}

// Title returns the page title, falling back to the first heading.
func Title(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return title
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
