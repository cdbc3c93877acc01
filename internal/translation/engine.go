package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"castsync/internal/language"
	"castsync/internal/ratelimit"
	"castsync/internal/services/llm"
)

// MediaContext describes the title being reconciled so an engine can pick
// established translations (the release's official character names).
type MediaContext struct {
	Title            string
	OriginalTitle    string
	Year             int
	Kind             string
	OriginalLanguage string
}

func (m *MediaContext) describe() string {
	if m == nil || strings.TrimSpace(m.Title) == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.Title)
	if m.OriginalTitle != "" && m.OriginalTitle != m.Title {
		fmt.Fprintf(&b, " / %s", m.OriginalTitle)
	}
	if m.Year > 0 {
		fmt.Fprintf(&b, " (%d)", m.Year)
	}
	if m.Kind != "" {
		fmt.Fprintf(&b, ", %s", m.Kind)
	}
	return b.String()
}

// Engine translates a batch of texts. It may return a partial map together
// with an error when only some chunks succeeded.
type Engine interface {
	Name() string
	Translate(ctx context.Context, texts []string, mctx *MediaContext) (map[string]string, error)
}

// Completer is the JSON chat completion capability an LLMEngine needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

const defaultChunkSize = 40

const translationPromptTemplate = `You translate film and television cast credits into %s.
You receive JSON {"media": string, "texts": [string]} where each text is either a person's name or a character name from that title.
Respond with JSON only: {"translations": {"<original text>": "<translation>"}}.
Rules:
- Use the established %s rendering when one exists (official release names, widely used transliterations).
- Transliterate personal names; translate descriptive character names ("Police Officer #2").
- Keep numbering and punctuation.
- Omit a text from "translations" when you are not confident.`

// LLMEngine translates through a JSON chat completion model.
type LLMEngine struct {
	client         Completer
	targetLanguage string
	chunkSize      int
	cooldown       *ratelimit.Cooldown
}

// NewLLMEngine builds an engine for the target language (BCP 47 code).
func NewLLMEngine(client Completer, targetLanguage string, cooldown *ratelimit.Cooldown) *LLMEngine {
	return &LLMEngine{
		client:         client,
		targetLanguage: language.Normalize(targetLanguage),
		chunkSize:      defaultChunkSize,
		cooldown:       cooldown,
	}
}

func (e *LLMEngine) Name() string {
	return "llm:" + e.client.Model()
}

type llmRequest struct {
	Media string   `json:"media,omitempty"`
	Texts []string `json:"texts"`
}

type llmResponse struct {
	Translations map[string]string `json:"translations"`
}

// Translate sends texts in fixed-size chunks. Chunks that fail are skipped;
// the first failure is returned alongside whatever succeeded.
func (e *LLMEngine) Translate(ctx context.Context, texts []string, mctx *MediaContext) (map[string]string, error) {
	name := language.DisplayName(e.targetLanguage)
	system := fmt.Sprintf(translationPromptTemplate, name, name)
	out := make(map[string]string, len(texts))
	var firstErr error

	for start := 0; start < len(texts); start += e.chunkSize {
		chunk := texts[start:min(start+e.chunkSize, len(texts))]
		got, err := e.translateChunk(ctx, system, chunk, mctx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for original, translated := range got {
			out[original] = translated
		}
	}
	return out, firstErr
}

func (e *LLMEngine) translateChunk(ctx context.Context, system string, chunk []string, mctx *MediaContext) (map[string]string, error) {
	if err := e.cooldown.Wait(ctx); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(llmRequest{Media: mctx.describe(), Texts: chunk})
	if err != nil {
		return nil, fmt.Errorf("encode translation request: %w", err)
	}
	content, err := e.client.CompleteJSON(ctx, system, string(payload))
	e.cooldown.Observe(err)
	if err != nil {
		return nil, err
	}
	var resp llmResponse
	if err := llm.DecodeLLMJSON(content, &resp); err != nil {
		return nil, fmt.Errorf("decode translation response: %w", err)
	}

	wanted := make(map[string]struct{}, len(chunk))
	for _, text := range chunk {
		wanted[text] = struct{}{}
	}
	out := make(map[string]string, len(resp.Translations))
	for original, translated := range resp.Translations {
		translated = strings.TrimSpace(translated)
		if _, ok := wanted[original]; !ok || translated == "" {
			continue
		}
		out[original] = translated
	}
	return out, nil
}
