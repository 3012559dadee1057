// browser.go implements the browser tool: headless-Chrome page rendering
// (go-rod/rod) followed by a readability pass (go-shiori/go-readability,
// shared with web_fetch_convert.go's extractReadableArticle) so JS-heavy pages that
// a plain HTTP GET can't render still yield clean text.
package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
)

const browserNavigateTimeout = 20 * time.Second

// Browser implements the browser tool: {url, extractMode?} -> {url, title,
// content}. SSRF protection uses common.go's checkSSRF, as web_fetch.go does, since this tool
// also dereferences a caller-supplied URL.
func Browser() toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		rawURL, _ := args["url"].(string)
		if rawURL == "" {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "url is required")
		}
		if err := checkSSRF(rawURL); err != nil {
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", err.Error())
		}

		extractMode := "markdown"
		if em, ok := args["extractMode"].(string); ok && (em == "markdown" || em == "text") {
			extractMode = em
		}

		browser := rod.New()
		if err := browser.Connect(); err != nil {
			return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", fmt.Sprintf("launch browser: %v", err))
		}
		defer browser.Close()

		page, err := browser.Page(proto.TargetCreateTarget{URL: rawURL})
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", fmt.Sprintf("open page: %v", err))
		}
		defer page.Close()

		page = page.Timeout(browserNavigateTimeout)
		if err := page.WaitLoad(); err != nil {
			return nil, toolbus.NewExecError("TOOL_TIMEOUT", fmt.Sprintf("page load: %v", err))
		}

		info, err := page.Info()
		title := ""
		if err == nil && info != nil {
			title = info.Title
		}

		html, err := page.HTML()
		if err != nil {
			return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", fmt.Sprintf("read page HTML: %v", err))
		}

		finalURL := rawURL
		if info != nil && info.URL != "" {
			finalURL = info.URL
		}

		content := html
		if article, readErr := extractReadableArticle([]byte(html), finalURL); readErr == nil && article != "" {
			content = article
		}

		text := stripHTMLTags(content, extractMode == "text")
		if extractMode == "text" {
			text = plainTextLines(text)
		} else {
			text = strings.TrimSpace(text)
		}

		return map[string]interface{}{
			"url":     finalURL,
			"title":   title,
			"content": wrapExternalContent(text, "Browser", true),
		}, nil
	}
}
