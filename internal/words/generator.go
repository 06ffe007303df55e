// internal/words/generator.go
package words

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/beaterboo/beaterboo/internal/models"
)

// tabooWordCount is the number of forbidden words every card carries.
const tabooWordCount = 5

// Provider produces card candidates for a topic. It may fail on quota,
// network, or malformed-output errors; the Generator absorbs those.
type Provider interface {
	Generate(ctx context.Context, topic, category string, count int, excludeWords []string) ([]models.TabooCard, error)
}

// GeminiProvider calls the Google Generative Language API over plain HTTP
// and extracts a JSON card array from the model's text response.
type GeminiProvider struct {
	APIKey     string
	Model      string
	Endpoint   string
	HTTPClient *http.Client
}

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// NewGeminiProvider builds a provider for the given API key.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		APIKey:     apiKey,
		Model:      "gemini-1.5-pro",
		Endpoint:   defaultGeminiEndpoint,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func buildPrompt(topic, category string, count int, excludeWords []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d Taboo game cards in Italian. Each card should have:\n", count)
	b.WriteString("1. A main word to guess\n")
	fmt.Fprintf(&b, "2. %d taboo words that can't be used\n", tabooWordCount)
	if topic != "" {
		fmt.Fprintf(&b, "The words should be related to %s.\n", topic)
	} else {
		b.WriteString("The words should be from various categories.\n")
	}
	if category != "" {
		fmt.Fprintf(&b, "The difficulty level should be %s.\n", category)
	}
	if len(excludeWords) > 0 {
		fmt.Fprintf(&b, "IMPORTANT: DO NOT include any of these words as main words: %s\n", strings.Join(excludeWords, ", "))
	}
	b.WriteString(`Format the response as a JSON array with this structure:
[{"mainWord": "word", "tabooWords": ["word1", "word2", "word3", "word4", "word5"]}]

Every mainWord must be unique and none should match any in the existing list.
Make sure each mainWord is a single word, not a phrase.
All words must be in Italian.`)
	return b.String()
}

// jsonArrayRe extracts the first JSON array from the model's free-form text.
var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate asks the model for cards, then validates and filters the output:
// unique main words, none in the exclusion list, exactly five taboo words.
func (p *GeminiProvider) Generate(ctx context.Context, topic, category string, count int, excludeWords []string) ([]models.TabooCard, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	body, err := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": buildPrompt(topic, category, count, excludeWords)}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.Endpoint, p.Model, p.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}

	text := gr.Candidates[0].Content.Parts[0].Text
	match := jsonArrayRe.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no valid JSON found in response")
	}

	var payload []struct {
		MainWord   string   `json:"mainWord"`
		TabooWords []string `json:"tabooWords"`
	}
	if err := json.Unmarshal([]byte(match), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse card array: %w", err)
	}

	excluded := wordSet(excludeWords)
	seen := map[string]struct{}{}
	var cards []models.TabooCard
	for _, c := range payload {
		main := strings.TrimSpace(c.MainWord)
		key := strings.ToLower(main)
		if main == "" || len(c.TabooWords) != tabooWordCount {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if _, ex := excluded[key]; ex {
			continue
		}
		seen[key] = struct{}{}
		cards = append(cards, models.TabooCard{
			ID:         uuid.NewString(),
			MainWord:   main,
			TabooWords: append([]string(nil), c.TabooWords...),
		})
		if len(cards) == count {
			break
		}
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("gemini produced no usable cards")
	}
	return cards, nil
}

func wordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return m
}

// Generator wraps a Provider and never fails: any provider error is absorbed
// and the deterministic built-in list substituted, so the "generate words"
// action always yields cards.
type Generator struct {
	provider Provider
	log      *logrus.Logger
}

// NewGenerator builds a generator. A nil provider always serves the fallback
// list.
func NewGenerator(provider Provider, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.New()
	}
	return &Generator{provider: provider, log: log}
}

// Cards returns up to count cards for the topic, falling back locally when
// the provider is missing, errors, or returns nothing usable.
func (g *Generator) Cards(ctx context.Context, topic, category string, count int, excludeWords []string) []models.TabooCard {
	if count <= 0 {
		count = 30
	}

	if g.provider != nil {
		cards, err := g.provider.Generate(ctx, topic, category, count, excludeWords)
		if err == nil && len(cards) > 0 {
			return cards
		}
		if err != nil {
			g.log.WithError(err).Warn("word provider failed, using fallback cards")
		}
	}

	return FallbackCards(count, excludeWords)
}
