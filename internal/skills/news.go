package skills

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"jarvis/internal/intent"
)

const (
	NameNews = "news"

	NewsAPIURL = "https://newsapi.org/v2"

	newsKeyMissing = "News API key not configured. Please add NEWS_API_KEY to .env"
)

type NewsSkill struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNewsSkill(apiKey string, client *http.Client) *NewsSkill {
	if client == nil {
		client = http.DefaultClient
	}
	return &NewsSkill{apiKey: apiKey, baseURL: NewsAPIURL, client: client}
}

func (s *NewsSkill) WithBaseURL(u string) *NewsSkill {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

func (s *NewsSkill) Name() string     { return NameNews }
func (s *NewsSkill) Describe() string { return "Provides news headlines and summaries" }

func (s *NewsSkill) IsEligible(in intent.Result) bool { return in.Has(intent.News) }

var (
	newsCategories = []string{"business", "entertainment", "health", "science", "sports", "technology"}
	newsTopicRe    = regexp.MustCompile(`(?i)\blatest (?:on|about)\s+(.+?)[?.!]*$`)
)

func (s *NewsSkill) ParametersFrom(text string, _ intent.Result) Params {
	if m := newsTopicRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return Params{"query": strings.TrimSpace(m[1]), "count": "5"}
	}
	lower := strings.ToLower(text)
	category := "general"
	for _, c := range newsCategories {
		if strings.Contains(lower, c) || (c == "technology" && strings.Contains(lower, "tech")) {
			category = c
			break
		}
	}
	return Params{"category": category, "country": "us", "count": "5"}
}

type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

type newsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (s *NewsSkill) Invoke(ctx context.Context, p Params) Result {
	if s.apiKey == "" {
		return fail(NameNews, newsKeyMissing)
	}
	count := p.Get("count", "5")
	if n, err := strconv.Atoi(count); err != nil || n <= 0 {
		count = "5"
	}

	endpoint := s.baseURL + "/top-headlines"
	q := url.Values{"apiKey": {s.apiKey}, "pageSize": {count}}
	query := strings.TrimSpace(p["query"])
	if query != "" {
		endpoint = s.baseURL + "/everything"
		q.Set("q", query)
		q.Set("sortBy", "publishedAt")
	} else {
		q.Set("category", p.Get("category", "general"))
		q.Set("country", p.Get("country", "us"))
	}

	var raw newsResponse
	status, err := getJSON(ctx, s.client, endpoint, q, &raw)
	if status == http.StatusUnauthorized {
		return fail(NameNews, newsKeyMissing)
	}
	if err != nil {
		if query != "" {
			return fail(NameNews, fmt.Sprintf("Failed to search news: %v", err))
		}
		return fail(NameNews, fmt.Sprintf("Failed to get news: %v", err))
	}

	articles := make([]Article, 0, len(raw.Articles))
	for _, a := range raw.Articles {
		articles = append(articles, Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	data := map[string]any{"articles": articles, "count": len(articles)}
	if query != "" {
		return ok(NameNews, data, fmt.Sprintf("Found %d articles for '%s'", len(articles), query))
	}
	return ok(NameNews, data, fmt.Sprintf("Found %d news articles", len(articles)))
}
