package skills

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"jarvis/internal/intent"
	"jarvis/internal/logging"
)

const (
	NameSearch = "search"

	PerplexityBaseURL = "https://api.perplexity.ai"
	PerplexityModel   = "sonar-small-online"
	DuckDuckGoURL     = "https://html.duckduckgo.com/html/"

	searchResultCount = 5
	searchDoneMessage = "Search completed successfully"
)

type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type SearchData struct {
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results,omitempty"`
	Source  string         `json:"source"`
	Query   string         `json:"query"`
	Note    string         `json:"note,omitempty"`
}

// SearchProvider is one web search backend.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string) (SearchData, error)
}

// SearchSkill tries each configured provider in order and falls back to
// DuckDuckGo, which needs no key.
type SearchSkill struct {
	providers []SearchProvider
	fallback  SearchProvider
	logger    *zap.Logger
}

func NewSearchSkill(providers []SearchProvider, fallback SearchProvider, logger *zap.Logger) *SearchSkill {
	return &SearchSkill{providers: providers, fallback: fallback, logger: logging.OrNop(logger)}
}

func (s *SearchSkill) Name() string { return NameSearch }
func (s *SearchSkill) Describe() string {
	return "Performs web searches and returns relevant information"
}

func (s *SearchSkill) IsEligible(in intent.Result) bool { return in.Has(intent.Search) }

func (s *SearchSkill) ParametersFrom(text string, _ intent.Result) Params {
	return Params{"query": strings.TrimSpace(text)}
}

func (s *SearchSkill) Invoke(ctx context.Context, p Params) Result {
	query := strings.TrimSpace(p["query"])
	if query == "" {
		return fail(NameSearch, "Search query is required")
	}
	for _, prov := range s.providers {
		data, err := prov.Search(ctx, query)
		if err != nil {
			s.logger.Warn("search provider failed", zap.String("provider", prov.Name()), zap.Error(err))
			continue
		}
		return ok(NameSearch, data, searchDoneMessage)
	}
	if s.fallback == nil {
		return fail(NameSearch, "Search failed: no search provider available")
	}
	data, err := s.fallback.Search(ctx, query)
	if err != nil {
		s.logger.Warn("fallback search failed", zap.String("provider", s.fallback.Name()), zap.Error(err))
		data = SearchData{Results: []SearchResult{}, Source: s.fallback.Name(), Query: query, Note: "Search completed with limited results"}
	}
	return ok(NameSearch, data, searchDoneMessage)
}

// ChatCompleter is satisfied by *openai.Client.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PerplexityProvider asks Perplexity's OpenAI-compatible chat endpoint.
type PerplexityProvider struct {
	client ChatCompleter
	model  string
}

func NewPerplexityProvider(apiKey string) *PerplexityProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = PerplexityBaseURL
	return &PerplexityProvider{client: openai.NewClientWithConfig(cfg), model: PerplexityModel}
}

func NewPerplexityProviderWithClient(c ChatCompleter, model string) *PerplexityProvider {
	if model == "" {
		model = PerplexityModel
	}
	return &PerplexityProvider{client: c, model: model}
}

func (p *PerplexityProvider) Name() string { return "perplexity" }

func (p *PerplexityProvider) Search(ctx context.Context, query string) (SearchData, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: query}},
	})
	if err != nil {
		return SearchData{}, fmt.Errorf("perplexity: %w", err)
	}
	if len(resp.Choices) == 0 {
		return SearchData{}, errors.New("perplexity: empty response")
	}
	return SearchData{Answer: resp.Choices[0].Message.Content, Source: p.Name(), Query: query}, nil
}

// GoogleProvider uses the Custom Search JSON API.
type GoogleProvider struct {
	svc *customsearch.Service
	cx  string
}

func NewGoogleProvider(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	return &GoogleProvider{svc: svc, cx: cx}, nil
}

func (g *GoogleProvider) Name() string { return "google" }

func (g *GoogleProvider) Search(ctx context.Context, query string) (SearchData, error) {
	res, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(searchResultCount).Context(ctx).Do()
	if err != nil {
		return SearchData{}, fmt.Errorf("google: %w", err)
	}
	out := make([]SearchResult, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, SearchResult{Title: it.Title, Link: it.Link, Snippet: it.Snippet})
	}
	return SearchData{Results: out, Source: g.Name(), Query: query}, nil
}

// DuckDuckGoProvider scrapes the HTML results page; no key required.
type DuckDuckGoProvider struct {
	baseURL string
	client  *http.Client
}

func NewDuckDuckGoProvider(client *http.Client) *DuckDuckGoProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &DuckDuckGoProvider{baseURL: DuckDuckGoURL, client: client}
}

func (d *DuckDuckGoProvider) WithBaseURL(u string) *DuckDuckGoProvider {
	d.baseURL = u
	return d
}

func (d *DuckDuckGoProvider) Name() string { return "duckduckgo" }

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (d *DuckDuckGoProvider) Search(ctx context.Context, query string) (SearchData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return SearchData{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return SearchData{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SearchData{}, fmt.Errorf("duckduckgo: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return SearchData{}, fmt.Errorf("failed to read response: %w", err)
	}
	return SearchData{Results: extractDDGResults(string(body), searchResultCount), Source: d.Name(), Query: query}, nil
}

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a class="result__snippet[^"]*".*?>([\s\S]*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func extractDDGResults(html string, count int) []SearchResult {
	links := ddgLinkRe.FindAllStringSubmatch(html, count)
	snippets := ddgSnippetRe.FindAllStringSubmatch(html, count)
	out := make([]SearchResult, 0, len(links))
	for i, m := range links {
		link := m[1]
		// result links are redirects carrying the target in uddg=
		if strings.Contains(link, "uddg=") {
			if u, err := url.QueryUnescape(link); err == nil {
				if idx := strings.Index(u, "uddg="); idx != -1 {
					link = u[idx+5:]
					if amp := strings.IndexByte(link, '&'); amp != -1 {
						link = link[:amp]
					}
				}
			}
		}
		r := SearchResult{Title: strings.TrimSpace(htmlTagRe.ReplaceAllString(m[2], "")), Link: link}
		if i < len(snippets) {
			r.Snippet = strings.TrimSpace(htmlTagRe.ReplaceAllString(snippets[i][1], ""))
		}
		out = append(out, r)
	}
	return out
}
