package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/msgcode/internal/envelope"
	"github.com/nextlevelbuilder/msgcode/internal/tools"
)

func webCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "web",
		Short: "One-shot web search/fetch commands",
	}
	c.AddCommand(webSearchCmd())
	c.AddCommand(webFetchCmd())
	return c
}

func webSearchCmd() *cobra.Command {
	var (
		query  string
		asJSON bool
	)
	c := &cobra.Command{
		Use:   "search",
		Short: "Search the web (DuckDuckGo by default, Brave when MSGCODE_BRAVE_API_KEY is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebSearch(query, asJSON)
		},
	}
	c.Flags().StringVar(&query, "q", "", "search query (required)")
	c.Flags().BoolVar(&asJSON, "json", false, "emit a schemaVersion:2 Envelope instead of plain text")
	return c
}

func runWebSearch(query string, asJSON bool) error {
	b := envelope.New("web search")
	if query == "" {
		b.AddError("--q is required")
		return emitWebResult(b, "", asJSON)
	}

	braveKey := os.Getenv("MSGCODE_BRAVE_API_KEY")
	search := tools.NewWebSearchTool(tools.WebSearchConfig{
		BraveAPIKey:  braveKey,
		BraveEnabled: braveKey != "",
		DDGEnabled:   true,
	})
	if search == nil {
		b.AddError("no search providers configured")
		return emitWebResult(b, "", asJSON)
	}

	out, err := search.Execute(context.Background(), map[string]interface{}{"query": query})
	if err != nil {
		b.AddError(err.Error())
		return emitWebResult(b, "", asJSON)
	}
	return emitWebResult(b, out, asJSON)
}

func webFetchCmd() *cobra.Command {
	var (
		url    string
		asJSON bool
	)
	c := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a URL and extract its content as markdown/text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebFetch(url, asJSON)
		},
	}
	c.Flags().StringVar(&url, "url", "", "HTTP/HTTPS URL to fetch (required)")
	c.Flags().BoolVar(&asJSON, "json", false, "emit a schemaVersion:2 Envelope instead of plain text")
	return c
}

func runWebFetch(url string, asJSON bool) error {
	b := envelope.New("web fetch")
	if url == "" {
		b.AddError("--url is required")
		return emitWebResult(b, "", asJSON)
	}

	fetch := tools.NewWebFetchTool(tools.WebFetchConfig{})
	out, err := fetch.Execute(context.Background(), map[string]interface{}{"url": url})
	if err != nil {
		b.AddError(err.Error())
		return emitWebResult(b, "", asJSON)
	}
	return emitWebResult(b, out, asJSON)
}

func emitWebResult(b *envelope.Builder, content string, asJSON bool) error {
	b.SetData(map[string]string{"content": content})
	env := b.Build()
	if !asJSON {
		if env.Status == envelope.StatusError {
			for _, e := range env.Errors {
				fmt.Fprintln(os.Stderr, "error:", e)
			}
		} else {
			fmt.Println(content)
		}
		if env.ExitCode != 0 {
			os.Exit(env.ExitCode)
		}
		return nil
	}
	out, err := env.MarshalIndent()
	if err != nil {
		return fmt.Errorf("web: marshal envelope: %w", err)
	}
	fmt.Println(string(out))
	if env.ExitCode != 0 {
		os.Exit(env.ExitCode)
	}
	return nil
}
