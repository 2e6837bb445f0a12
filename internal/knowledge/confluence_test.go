package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"m10support/backend/internal/config"
)

func newTestConfluence(baseURL string) *Confluence {
	c := NewConfluence(config.Config{
		ConfluenceBaseURL:  baseURL,
		ConfluenceEmail:    "support@m10.az",
		ConfluenceAPIToken: "token",
		ConfluenceSpaceKey: "M10SUPPORT",
	})
	c.httpClient = &http.Client{Timeout: 2 * time.Second}
	return c
}

func TestConfluenceSearchMapsResults(t *testing.T) {
	var gotCQL, gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wiki/rest/api/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotCQL = r.URL.Query().Get("cql")
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"@@@hl@@@BakıKART@@@endhl@@@ balansı","url":"/spaces/M10SUPPORT/pages/1","excerpt":"Kartı   @@@hl@@@artırmaq@@@endhl@@@ üçün"},
			{"title":"","content":{"title":"Köçürmələr"},"url":"https://wiki.example/x","excerpt":"pulsuz"},
			{"title":"Kredit","url":"/spaces/M10SUPPORT/pages/3","excerpt":"25,000 AZN"},
			{"title":"Extra","url":"/spaces/M10SUPPORT/pages/4","excerpt":"ignored"}
		]}`))
	}))
	defer server.Close()

	sources, err := newTestConfluence(server.URL).Search(context.Background(), `BakıKART "balans"`)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if gotCQL != `space = "M10SUPPORT" AND text ~ "BakıKART \"balans\""` {
		t.Fatalf("unexpected cql: %s", gotCQL)
	}
	if gotUser != "support@m10.az" || gotPass != "token" {
		t.Fatalf("unexpected basic auth: %s/%s", gotUser, gotPass)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].Title != "BakıKART balansı" || sources[0].Excerpt != "Kartı artırmaq üçün" {
		t.Fatalf("expected highlight markers stripped, got %+v", sources[0])
	}
	if sources[0].URL != server.URL+"/wiki/spaces/M10SUPPORT/pages/1" {
		t.Fatalf("unexpected url: %s", sources[0].URL)
	}
	if sources[1].Title != "Köçürmələr" || sources[1].URL != "https://wiki.example/x" {
		t.Fatalf("unexpected fallback title/url: %+v", sources[1])
	}
}

func TestConfluenceSearchReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
	}))
	defer server.Close()

	_, err := newTestConfluence(server.URL).Search(context.Background(), "kredit")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected http 401 error, got %v", err)
	}
}

func TestTruncateRunesKeepsUTF8(t *testing.T) {
	got := truncateRunes(strings.Repeat("ə", 250), maxExcerptRunes)
	if len([]rune(got)) != maxExcerptRunes {
		t.Fatalf("expected %d runes, got %d", maxExcerptRunes, len([]rune(got)))
	}
}
