package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type KeywordRule struct {
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

// KeywordTable is matched top to bottom; the first rule with a keyword
// contained in the lowercased text wins.
type KeywordTable struct {
	Rules   []KeywordRule `yaml:"rules"`
	Default string        `yaml:"default"`
}

func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		Rules: []KeywordRule{
			{
				Keywords: []string{"bakıkart", "bakikart", "бакыкарт"},
				Answer:   "BakıKART balansını artırmaq üçün:\n1. Xidmətlər bölməsinə keçin\n2. BakıKART seçin\n3. Kart nömrəsini daxil edin\n4. Məbləği seçin (1-100 AZN)\n5. Ödə düyməsinə toxunun",
			},
			{
				Keywords: []string{"balans", "баланс"},
				Answer:   "Balansınızı əsas ekranda görə bilərsiniz. Göz işarəsinə toxunaraq balansı gizlədə bilərsiniz.",
			},
			{
				Keywords: []string{"köçürmə", "transfer", "перевод"},
				Answer:   "Pul köçürmələri pulsuz və anidir. Telefon və ya kart nömrəsi ilə köçürmə edə bilərsiniz.",
			},
			{
				Keywords: []string{"kredit", "кредит"},
				Answer:   "m10 kredit xidməti:\n• Maksimum: 25,000 AZN\n• Müddət: 3-36 ay\n• Onlayn müraciət\n• Sürətli cavab",
			},
		},
		Default: "Mən sizə m10 xidmətləri ilə bağlı kömək edə bilərəm. Sualınızı daha dəqiq ifadə edin.",
	}
}

// LoadKeywordTable reads a YAML keyword table from path.
func LoadKeywordTable(path string) (KeywordTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeywordTable{}, fmt.Errorf("read keyword table: %w", err)
	}
	return ParseKeywordTable(raw)
}

func ParseKeywordTable(raw []byte) (KeywordTable, error) {
	var table KeywordTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return KeywordTable{}, fmt.Errorf("decode keyword table: %w", err)
	}
	if strings.TrimSpace(table.Default) == "" {
		return KeywordTable{}, errors.New("keyword table default answer is required")
	}
	for i, rule := range table.Rules {
		if strings.TrimSpace(rule.Answer) == "" {
			return KeywordTable{}, fmt.Errorf("keyword rule %d has no answer", i)
		}
		normalized := make([]string, 0, len(rule.Keywords))
		for _, keyword := range rule.Keywords {
			if k := strings.ToLower(strings.TrimSpace(keyword)); k != "" {
				normalized = append(normalized, k)
			}
		}
		if len(normalized) == 0 {
			return KeywordTable{}, fmt.Errorf("keyword rule %d has no keywords", i)
		}
		table.Rules[i].Keywords = normalized
	}
	return table, nil
}

func (t KeywordTable) Match(text string) string {
	lowered := strings.ToLower(text)
	for _, rule := range t.Rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, keyword) {
				return rule.Answer
			}
		}
	}
	return t.Default
}

// KeywordResponder answers offline from a KeywordTable.
type KeywordResponder struct {
	table KeywordTable
}

func NewKeywordResponder(table KeywordTable) *KeywordResponder {
	return &KeywordResponder{table: table}
}

func (r *KeywordResponder) Respond(_ context.Context, req Request) (Answer, error) {
	return Answer{
		Text:       r.table.Match(req.Text),
		Sources:    []Source{SupportPortalSource},
		Confidence: 0.7,
	}, nil
}
