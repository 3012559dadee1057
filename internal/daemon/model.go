package daemon

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nextlevelbuilder/msgcode/internal/toolloop"
	"github.com/nextlevelbuilder/msgcode/internal/wsconfig"
)

// defaultBaseURLs maps agent.provider to its default OpenAI-compatible
// chat-completion endpoint. model.base_url in workspace config overrides
// this per workspace.
var defaultBaseURLs = map[string]string{
	"lmstudio": "http://localhost:1234/v1/chat/completions",
	"openai":   "https://api.openai.com/v1/chat/completions",
}

func resolveBaseURL(cfg *wsconfig.Config) string {
	if url := cfg.GetString(wsconfig.KeyModelBaseURL); url != "" {
		return url
	}
	if url, ok := defaultBaseURLs[cfg.AgentProvider()]; ok {
		return url
	}
	return defaultBaseURLs["lmstudio"]
}

// newCallModel builds a toolloop.CallModel posting the chat-completion
// request body to the workspace's resolved model endpoint, with a raw
// string-in/string-out contract.
func newCallModel(httpClient *http.Client, baseURL string) toolloop.CallModel {
	return func(ctx context.Context, requestBody string) (string, int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, strings.NewReader(requestBody))
		if err != nil {
			return "", 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey := os.Getenv("MSGCODE_MODEL_API_KEY"); apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			return "", 0, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", resp.StatusCode, err
		}
		return string(body), resp.StatusCode, nil
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}
