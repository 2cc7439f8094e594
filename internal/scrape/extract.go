// Package scrape turns article pages into readable text. Extraction is a
// self-contained set of heuristics over raw HTML; fetching is either a plain
// HTTP GET or a headless-browser render for pages that need JavaScript.
package scrape

import (
	"html"
	"regexp"
	"strings"
)

// Article is the readable content extracted from one page.
type Article struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

// minParagraphLen filters boilerplate fragments (bylines, cookie notices,
// social links) that real article paragraphs comfortably exceed.
const minParagraphLen = 60

var (
	reTitle     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	reParagraph = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	reHeadline  = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	reTag       = regexp.MustCompile(`(?s)<[^>]*>`)
	reSpace     = regexp.MustCompile(`\s+`)
)

// Extract pulls the title and substantial paragraphs out of an article
// page's HTML. Script, style and chrome blocks are dropped first; whatever
// text survives inside <p> elements and clears the length bar is kept in
// document order.
func Extract(rawHTML string) Article {
	cleaned := reComment.ReplaceAllString(rawHTML, "")
	cleaned = dropBlocks(cleaned)

	article := Article{Title: extractTitle(cleaned)}

	for _, match := range reParagraph.FindAllStringSubmatch(cleaned, -1) {
		text := flattenText(match[1])
		if len(text) >= minParagraphLen {
			article.Paragraphs = append(article.Paragraphs, text)
		}
	}

	return article
}

// Text returns the article as one plain-text block.
func (a Article) Text() string {
	return strings.Join(a.Paragraphs, "\n\n")
}

// Empty reports whether extraction found no usable content.
func (a Article) Empty() bool {
	return a.Title == "" && len(a.Paragraphs) == 0
}

// extractTitle prefers the first <h1> over the document <title>, which often
// carries site branding.
func extractTitle(cleaned string) string {
	if m := reHeadline.FindStringSubmatch(cleaned); m != nil {
		if title := flattenText(m[1]); title != "" {
			return title
		}
	}
	if m := reTitle.FindStringSubmatch(cleaned); m != nil {
		return flattenText(m[1])
	}
	return ""
}

// dropBlocks removes elements whose content is never article text.
func dropBlocks(s string) string {
	for _, tag := range []string{"script", "style", "noscript", "nav", "header", "footer", "aside", "form"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// flattenText strips residual tags, decodes entities and collapses
// whitespace.
func flattenText(s string) string {
	s = reTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = reSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
