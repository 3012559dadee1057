package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/msgcode/internal/budget"
)

const (
	defaultSearchCount   = 5
	maxSearchCount       = 10
	searchTimeoutSeconds = 30
	braveSearchEndpoint  = "https://api.search.brave.com/res/v1/web/search"
	webSearchUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// SearchProvider abstracts a web search backend.
type SearchProvider interface {
	Search(ctx context.Context, params searchParams) ([]searchResult, error)
	Name() string
}

type searchParams struct {
	Query      string
	Count      int
	Country    string
	SearchLang string
	UILang     string
	Freshness  string
}

type searchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

var (
	freshnessShortcuts = map[string]bool{"pd": true, "pw": true, "pm": true, "py": true}
	freshnessRangeRe   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})to(\d{4}-\d{2}-\d{2})$`)
)

// normalizeFreshness accepts the shortcuts ("pd"/"pw"/"pm"/"py") or a
// "YYYY-MM-DDtoYYYY-MM-DD" range with start <= end; anything else is
// dropped rather than forwarded to a provider that would reject it.
func normalizeFreshness(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || freshnessShortcuts[v] {
		return v
	}
	if m := freshnessRangeRe.FindStringSubmatch(v); len(m) == 3 {
		start, errS := time.Parse("2006-01-02", m[1])
		end, errE := time.Parse("2006-01-02", m[2])
		if errS == nil && errE == nil && !start.After(end) {
			return v
		}
	}
	return ""
}

// descriptionCharBudget bounds each result's snippet against the "current"
// section of the context budgeter (C10), the same sizing rule web_fetch.go
// uses for its whole response — a list of N results should not alone
// consume the turn's entire current-section quota.
func descriptionCharBudget(resultCount int) int {
	caps := budget.CapabilitiesFor("local-llm")
	alloc := budget.AllocateSections(budget.ComputeInputBudget(caps), budget.DefaultRatios)
	if resultCount <= 0 {
		resultCount = 1
	}
	perResult := (alloc.Current * caps.CharsPerToken) / resultCount
	if perResult < 80 {
		perResult = 80
	}
	return perResult
}

// WebSearchTool fans a query out to every configured provider concurrently
// and merges the results, deduplicating by URL, rather than returning
// whichever provider answers first.
type WebSearchTool struct {
	providers []SearchProvider
	cache     *webCache
}

// WebSearchConfig holds configuration for the web search tool.
type WebSearchConfig struct {
	BraveAPIKey     string
	BraveEnabled    bool
	BraveMaxResults int
	DDGEnabled      bool
	DDGMaxResults   int
	CacheTTL        time.Duration
}

func NewWebSearchTool(cfg WebSearchConfig) *WebSearchTool {
	var providers []SearchProvider
	if cfg.BraveEnabled && cfg.BraveAPIKey != "" {
		providers = append(providers, newBraveSearchProvider(cfg.BraveAPIKey))
	}
	if cfg.DDGEnabled {
		providers = append(providers, newDuckDuckGoSearchProvider())
	}
	if len(providers) == 0 {
		return nil
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &WebSearchTool{
		providers: providers,
		cache:     newWebCache(defaultCacheMaxEntries, ttl),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets merged across every configured search provider."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query string.",
			},
			"count": map[string]interface{}{
				"type":        "number",
				"description": "Number of results to return (1-10).",
				"minimum":     1.0,
				"maximum":     float64(maxSearchCount),
			},
			"country": map[string]interface{}{
				"type":        "string",
				"description": "2-letter country code for region-specific results (e.g., 'DE', 'US', 'ALL'). Default: 'US'.",
			},
			"search_lang": map[string]interface{}{
				"type":        "string",
				"description": "ISO language code for search results (e.g., 'de', 'en', 'fr').",
			},
			"ui_lang": map[string]interface{}{
				"type":        "string",
				"description": "ISO language code for UI elements.",
			},
			"freshness": map[string]interface{}{
				"type":        "string",
				"description": "Filter results by discovery time. Supports 'pd' (past day), 'pw' (past week), 'pm' (past month), 'py' (past year), and date range 'YYYY-MM-DDtoYYYY-MM-DD'.",
			},
		},
		"required": []string{"query"},
	}
}

// providerOutcome is one provider's result or failure, collected from the
// fan-out goroutines in Execute.
type providerOutcome struct {
	provider string
	results  []searchResult
	err      error
}

// Execute queries every configured provider concurrently, merges their
// results (first occurrence of a URL wins, so provider order still acts as
// a tie-break), and truncates each snippet to the per-result budget before
// formatting the reply.
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	count := defaultSearchCount
	if c, ok := args["count"].(float64); ok && int(c) >= 1 && int(c) <= maxSearchCount {
		count = int(c)
	}

	params := searchParams{
		Query:      query,
		Count:      count,
		Country:    stringArg(args, "country"),
		SearchLang: stringArg(args, "search_lang"),
		UILang:     stringArg(args, "ui_lang"),
		Freshness:  normalizeFreshness(stringArg(args, "freshness")),
	}

	cacheKey := buildSearchCacheKey(params)
	if cached, ok := t.cache.get(cacheKey); ok {
		slog.Debug("web_search cache hit", "query", query)
		return cached, nil
	}

	outcomes := t.fanOut(ctx, params)

	merged, usedProviders, lastErr := mergeSearchResults(outcomes, count)
	if len(merged) == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("all search providers failed: %w", lastErr)
		}
		return "", fmt.Errorf("no search providers configured")
	}

	formatted := formatSearchResults(query, merged, usedProviders, descriptionCharBudget(len(merged)))
	wrapped := wrapExternalContent(formatted, "Web Search", false)
	t.cache.set(cacheKey, wrapped)
	return wrapped, nil
}

// fanOut queries every provider concurrently and waits for all of them.
func (t *WebSearchTool) fanOut(ctx context.Context, params searchParams) []providerOutcome {
	outcomes := make([]providerOutcome, len(t.providers))
	var wg sync.WaitGroup
	for i, provider := range t.providers {
		wg.Add(1)
		go func(i int, provider SearchProvider) {
			defer wg.Done()
			results, err := provider.Search(ctx, params)
			outcomes[i] = providerOutcome{provider: provider.Name(), results: results, err: err}
		}(i, provider)
	}
	wg.Wait()
	return outcomes
}

// mergeSearchResults flattens provider outcomes into a deduplicated,
// count-bounded result list, logging (but not failing on) individual
// provider errors as long as at least one provider produced something.
func mergeSearchResults(outcomes []providerOutcome, count int) ([]searchResult, []string, error) {
	seen := map[string]bool{}
	var merged []searchResult
	var usedProviders []string
	var lastErr error

	for _, o := range outcomes {
		if o.err != nil {
			slog.Warn("web_search provider failed", "provider", o.provider, "error", o.err)
			lastErr = o.err
			continue
		}
		added := false
		for _, r := range o.results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			merged = append(merged, r)
			added = true
			if len(merged) >= count {
				break
			}
		}
		if added {
			usedProviders = append(usedProviders, o.provider)
		}
		if len(merged) >= count {
			break
		}
	}
	return merged, usedProviders, lastErr
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func buildSearchCacheKey(p searchParams) string {
	parts := []string{
		p.Query,
		fmt.Sprintf("%d", p.Count),
		orDefault(p.Country, "default"),
		orDefault(p.SearchLang, "default"),
		orDefault(p.UILang, "default"),
		orDefault(p.Freshness, "default"),
	}
	return strings.Join(parts, ":")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func formatSearchResults(query string, results []searchResult, providers []string, descBudget int) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for: %s", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for: %s (via %s)\n\n", query, strings.Join(providers, ", "))
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", truncateStr(r.Description, descBudget))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
