package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"m10support/backend/internal/chat"
	"m10support/backend/internal/config"
)

const (
	defaultResultLimit = 3
	maxExcerptRunes    = 200
)

var highlightMarkers = strings.NewReplacer("@@@hl@@@", "", "@@@endhl@@@", "")

// Confluence searches one Confluence space through the CQL search API.
type Confluence struct {
	baseURL    string
	email      string
	apiToken   string
	spaceKey   string
	limit      int
	httpClient *http.Client
}

func NewConfluence(cfg config.Config) *Confluence {
	return &Confluence{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.ConfluenceBaseURL), "/"),
		email:    strings.TrimSpace(cfg.ConfluenceEmail),
		apiToken: strings.TrimSpace(cfg.ConfluenceAPIToken),
		spaceKey: strings.TrimSpace(cfg.ConfluenceSpaceKey),
		limit:    defaultResultLimit,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Excerpt string `json:"excerpt"`
		Content struct {
			Title string `json:"title"`
		} `json:"content"`
	} `json:"results"`
}

func (c *Confluence) Search(ctx context.Context, query string) ([]chat.Source, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("cql", buildCQL(c.spaceKey, query))
	params.Set("limit", strconv.Itoa(c.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wiki/rest/api/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("confluence search http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode confluence search: %w", err)
	}

	sources := make([]chat.Source, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		title := strings.TrimSpace(highlightMarkers.Replace(result.Title))
		if title == "" {
			title = strings.TrimSpace(result.Content.Title)
		}
		if title == "" {
			continue
		}
		sources = append(sources, chat.Source{
			Title:   title,
			URL:     c.absoluteURL(result.URL),
			Excerpt: truncateRunes(strings.Join(strings.Fields(highlightMarkers.Replace(result.Excerpt)), " "), maxExcerptRunes),
		})
		if len(sources) == c.limit {
			break
		}
	}
	return sources, nil
}

func buildCQL(spaceKey, query string) string {
	escaped := strings.ReplaceAll(strings.ReplaceAll(query, `\`, `\\`), `"`, `\"`)
	if spaceKey == "" {
		return fmt.Sprintf(`text ~ "%s"`, escaped)
	}
	return fmt.Sprintf(`space = "%s" AND text ~ "%s"`, spaceKey, escaped)
}

func (c *Confluence) absoluteURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + "/wiki" + path
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
