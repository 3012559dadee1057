package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheTTL        = 5 * time.Minute
	defaultCacheMaxEntries = 256
)

// webCache is a small bounded TTL cache shared by web_fetch and web_search
// so repeated lookups of the same key don't re-hit the network.
type webCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]cacheEntry
	order   []string
}

type cacheEntry struct {
	value   string
	expires time.Time
}

func newWebCache(maxSize int, ttl time.Duration) *webCache {
	return &webCache{ttl: ttl, maxSize: maxSize, entries: map[string]cacheEntry{}}
}

func (c *webCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return "", false
	}
	return e.value, true
}

func (c *webCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
}

// checkSSRF rejects URLs whose host is empty, "localhost", or an IP literal
// in IPv4 loopback, link-local, or private address space, or the IPv6
// loopback. Hostnames are not resolved, so a name that resolves to such an
// address is not rejected.
func checkSSRF(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	host := u.Hostname()
	if host == "localhost" || host == "" {
		return fmt.Errorf("refused: loopback host")
	}
	if ip := parseIPLiteral(host); ip != "" {
		for _, prefix := range blockedPrefixes {
			if strings.HasPrefix(ip, prefix) {
				return fmt.Errorf("refused: private/loopback address")
			}
		}
	}
	return nil
}

var blockedPrefixes = []string{
	"127.", "10.", "192.168.", "169.254.", "0.", "::1",
	"172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.", "172.22.", "172.23.",
	"172.24.", "172.25.", "172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
}

func parseIPLiteral(host string) string {
	if regexp.MustCompile(`^[0-9.]+$`).MatchString(host) || strings.Contains(host, ":") {
		return host
	}
	return ""
}

// wrapExternalContent wraps fetched/searched content with a boundary marker
// so a careless model doesn't mistake it for trusted instructions.
func wrapExternalContent(content, label string, trusted bool) string {
	return fmt.Sprintf("<external source=%q trusted=%v>\n%s\n</external>", label, trusted, content)
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// --- Search providers ---

type braveSearchProvider struct{ apiKey string }

func newBraveSearchProvider(apiKey string) *braveSearchProvider { return &braveSearchProvider{apiKey: apiKey} }

func (p *braveSearchProvider) Name() string { return "brave" }

func (p *braveSearchProvider) Search(ctx context.Context, params searchParams) ([]searchResult, error) {
	q := url.Values{}
	q.Set("q", params.Query)
	if params.Count > 0 {
		q.Set("count", fmt.Sprintf("%d", params.Count))
	}
	if params.Country != "" {
		q.Set("country", params.Country)
	}
	if params.SearchLang != "" {
		q.Set("search_lang", params.SearchLang)
	}
	if params.Freshness != "" {
		q.Set("freshness", params.Freshness)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", braveSearchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", p.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", webSearchUserAgent)

	client := &http.Client{Timeout: searchTimeoutSeconds * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search: status %d", resp.StatusCode)
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	out := make([]searchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		out = append(out, searchResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return out, nil
}

// duckDuckGoSearchProvider uses the no-API-key HTML results endpoint as a
// fallback when no Brave key is configured.
type duckDuckGoSearchProvider struct{}

func newDuckDuckGoSearchProvider() *duckDuckGoSearchProvider { return &duckDuckGoSearchProvider{} }

func (p *duckDuckGoSearchProvider) Name() string { return "duckduckgo" }

var ddgResultRe = regexp.MustCompile(`(?is)<a[^>]*class="result__a"[^>]*href="([^"]*)"[^>]*>([\s\S]*?)</a>`)

func (p *duckDuckGoSearchProvider) Search(ctx context.Context, params searchParams) ([]searchResult, error) {
	q := url.Values{}
	q.Set("q", params.Query)

	req, err := http.NewRequestWithContext(ctx, "GET", "https://html.duckduckgo.com/html/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", webSearchUserAgent)

	client := &http.Client{Timeout: searchTimeoutSeconds * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	matches := ddgResultRe.FindAllStringSubmatch(string(body), params.Count)
	out := make([]searchResult, 0, len(matches))
	for _, m := range matches {
		title := strings.TrimSpace(reTag.ReplaceAllString(m[2], ""))
		out = append(out, searchResult{Title: decodeHTMLEntities(title), URL: m[1]})
		if params.Count > 0 && len(out) >= params.Count {
			break
		}
	}
	return out, nil
}
