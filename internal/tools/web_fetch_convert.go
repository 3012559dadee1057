package tools

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

// convertHTML turns a fetched page into the extractMode ("markdown" or
// "text") the web_fetch tool was asked for. It always runs a go-readability
// pass first (DOMAIN STACK: go-shiori/go-readability) to strip chrome — nav,
// ads, boilerplate — and only falls back to stripping the raw body when
// readability can't find an article; either way the same tag-stripping pass
// below does the final conversion, so the readability article is exercised
// through the conversion, not parsed and then set aside.
func convertHTML(body []byte, pageURL, extractMode string) (text, extractor string) {
	html := string(body)
	extractor = "html-to-" + extractMode

	if article, err := extractReadableArticle(body, pageURL); err == nil && article != "" {
		html = article
		extractor = "readability+" + extractor
	}

	stripped := stripHTMLTags(html, extractMode == "text")
	if extractMode == "text" {
		return plainTextLines(stripped), extractor
	}
	return strings.TrimSpace(stripped), extractor
}

// extractReadableArticle runs go-readability over raw HTML and returns its
// main-content HTML, or an error/empty string when no article was found.
func extractReadableArticle(body []byte, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.Content), nil
}

// extractJSON pretty-prints JSON content.
func extractJSON(body []byte) (string, string) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err == nil {
		formatted, _ := json.MarshalIndent(data, "", "  ")
		return string(formatted), "json"
	}
	return string(body), "raw"
}

// --- shared tag-stripping core ---
//
// One regex pass does the work that the teacher's htmlToMarkdown and
// htmlToText kept as two near-duplicate functions; markdown mode keeps a
// handful of structural substitutions (headings, links, emphasis, code)
// before the same tag-strip/entity-decode/whitespace-collapse tail that
// text mode uses directly.

var (
	reNonContent = regexp.MustCompile(`(?is)<(script|style|nav|footer|header)[\s\S]*?</(?:script|style|nav|footer|header)>|<!--[\s\S]*?-->`)
	reHeading    = regexp.MustCompile(`(?i)<h([1-6])[^>]*>([\s\S]*?)</h[1-6]>`)
	rePre        = regexp.MustCompile(`(?is)<pre[^>]*>([\s\S]*?)</pre>`)
	reCode       = regexp.MustCompile(`(?i)<code[^>]*>([\s\S]*?)</code>`)
	reBlockq     = regexp.MustCompile(`(?is)<blockquote[^>]*>([\s\S]*?)</blockquote>`)
	reAnchor     = regexp.MustCompile(`(?i)<a[^>]*href="([^"]*)"[^>]*>([\s\S]*?)</a>`)
	reImg        = regexp.MustCompile(`(?i)<img[^>]*alt="([^"]*)"[^>]*/?>`)
	reStrong     = regexp.MustCompile(`(?i)<(?:strong|b)[^>]*>([\s\S]*?)</(?:strong|b)>`)
	reEm         = regexp.MustCompile(`(?i)<(?:em|i)[^>]*>([\s\S]*?)</(?:em|i)>`)
	reParagraph  = regexp.MustCompile(`(?i)<p[^>]*>([\s\S]*?)</p>`)
	reBreak      = regexp.MustCompile(`(?i)<br\s*/?>`)
	reListItem   = regexp.MustCompile(`(?i)<li[^>]*>([\s\S]*?)</li>`)
	reTag        = regexp.MustCompile(`<[^>]+>`)
	reMultiNL    = regexp.MustCompile(`\n{3,}`)
	reMultiSP    = regexp.MustCompile(`[ \t]{2,}`)
)

func stripHTMLTags(html string, plain bool) string {
	s := reNonContent.ReplaceAllString(html, "")

	if !plain {
		s = reHeading.ReplaceAllStringFunc(s, func(m string) string {
			g := reHeading.FindStringSubmatch(m)
			return "\n" + strings.Repeat("#", len(g[1])) + " " + g[2] + "\n"
		})
		s = rePre.ReplaceAllString(s, "\n```\n$1\n```\n")
		s = reCode.ReplaceAllString(s, "`$1`")
		s = reBlockq.ReplaceAllStringFunc(s, quoteBlock)
		s = reAnchor.ReplaceAllString(s, "[$2]($1)")
		s = reImg.ReplaceAllString(s, "![$1]")
		s = reStrong.ReplaceAllString(s, "**$1**")
		s = reEm.ReplaceAllString(s, "*$1*")
	}

	s = reParagraph.ReplaceAllString(s, "\n$1\n")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reListItem.ReplaceAllString(s, "\n- $1")
	s = reTag.ReplaceAllString(s, "")
	s = decodeHTMLEntities(s)
	s = reMultiSP.ReplaceAllString(s, " ")
	s = reMultiNL.ReplaceAllString(s, "\n\n")
	return s
}

func quoteBlock(match string) string {
	inner := reBlockq.FindStringSubmatch(match)
	if len(inner) < 2 {
		return match
	}
	var quoted []string
	for _, l := range strings.Split(strings.TrimSpace(inner[1]), "\n") {
		quoted = append(quoted, "> "+strings.TrimSpace(l))
	}
	return "\n" + strings.Join(quoted, "\n") + "\n"
}

func plainTextLines(s string) string {
	var clean []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}

// markdownToText strips markdown formatting for text-mode requests against
// a source that was already served as markdown (e.g. Content-Type:
// text/markdown), so it doesn't need a second HTML pass.
func markdownToText(md string) string {
	s := regexp.MustCompile(`(?m)^#{1,6}\s+`).ReplaceAllString(md, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = regexp.MustCompile("`[^`]+`").ReplaceAllStringFunc(s, func(m string) string { return strings.Trim(m, "`") })
	s = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`).ReplaceAllString(s, "$1")
	s = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`).ReplaceAllString(s, "$1")
	return strings.TrimSpace(reMultiNL.ReplaceAllString(s, "\n\n"))
}

func decodeHTMLEntities(s string) string {
	return strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
		"&apos;", "'", "&nbsp;", " ", "&mdash;", "—", "&ndash;", "–",
		"&laquo;", "«", "&raquo;", "»", "&bull;", "•",
		"&hellip;", "...", "&copy;", "(c)", "&reg;", "(R)", "&trade;", "(TM)",
	).Replace(s)
}
