package chat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeywordTableFirstMatchWins(t *testing.T) {
	table := DefaultKeywordTable()

	bakikart := table.Match("Necə BakıKART balansını artıra bilərəm?")
	if !strings.HasPrefix(bakikart, "BakıKART balansını artırmaq üçün:") {
		t.Fatalf("expected BakıKART answer, got %q", bakikart)
	}

	balance := table.Match("Balans necə yoxlanılır")
	if !strings.HasPrefix(balance, "Balansınızı əsas ekranda") {
		t.Fatalf("expected balance answer, got %q", balance)
	}
}

func TestKeywordTableMatchesEachRule(t *testing.T) {
	table := DefaultKeywordTable()
	cases := map[string]string{
		"как пополнить бакыкарт": table.Rules[0].Answer,
		"мой баланс":             table.Rules[1].Answer,
		"Pul KÖÇÜRMƏ":            table.Rules[2].Answer,
		"bank transfer fee":      table.Rules[2].Answer,
		"перевод другу":          table.Rules[2].Answer,
		"kredit almaq":           table.Rules[3].Answer,
		"нужен кредит":           table.Rules[3].Answer,
	}
	for text, want := range cases {
		if got := table.Match(text); got != want {
			t.Fatalf("Match(%q)=%q, want %q", text, got, want)
		}
	}
}

func TestKeywordTableUnknownReturnsClarification(t *testing.T) {
	table := DefaultKeywordTable()
	if got := table.Match("hava necədir?"); got != table.Default {
		t.Fatalf("expected clarification answer, got %q", got)
	}
}

func TestKeywordResponderAttachesSupportPortal(t *testing.T) {
	responder := NewKeywordResponder(DefaultKeywordTable())
	answer, err := responder.Respond(context.Background(), Request{Text: "kredit"})
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != SupportPortalSource {
		t.Fatalf("expected support portal source, got %+v", answer.Sources)
	}
	if answer.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %v", answer.Confidence)
	}
	if answer.Model != "" {
		t.Fatalf("expected no model, got %q", answer.Model)
	}
}

func TestLoadKeywordTableFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	raw := `rules:
  - keywords: ["Kart", "card"]
    answer: "Kart sifarişi tətbiqdə mümkündür."
  - keywords: ["kart sifariş"]
    answer: "never reached"
default: "Zəhmət olmasa dəqiqləşdirin."
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write keyword table: %v", err)
	}

	table, err := LoadKeywordTable(path)
	if err != nil {
		t.Fatalf("load keyword table: %v", err)
	}
	if table.Rules[0].Keywords[0] != "kart" {
		t.Fatalf("expected keywords lowercased, got %v", table.Rules[0].Keywords)
	}
	if got := table.Match("KART SIFARIŞ"); got != "Kart sifarişi tətbiqdə mümkündür." {
		t.Fatalf("unexpected match: %q", got)
	}
	if got := table.Match("salam"); got != "Zəhmət olmasa dəqiqləşdirin." {
		t.Fatalf("unexpected default: %q", got)
	}
}

func TestParseKeywordTableRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"missing default": "rules:\n  - keywords: [a]\n    answer: b\n",
		"missing answer":  "rules:\n  - keywords: [a]\ndefault: d\n",
		"no keywords":     "rules:\n  - keywords: [\" \"]\n    answer: b\ndefault: d\n",
		"not yaml":        "rules: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseKeywordTable([]byte(raw)); err == nil {
				t.Fatalf("expected %s to fail", name)
			}
		})
	}
}
