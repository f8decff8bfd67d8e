package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/expense-classifier/internal/logger"
)

// Provenance records which path produced a classification.
type Provenance string

const (
	ProvenanceAI       Provenance = "ai"
	ProvenanceFallback Provenance = "fallback"
)

// promptCorrections caps how many correction hints go into the prompt;
// callers may pass a longer list.
const promptCorrections = 10

// Classification is the result of classifying one expense.
type Classification struct {
	Category    string
	Subcategory string
	Provenance  Provenance
	Provider    string
}

// Provider is a single AI backend able to complete a text prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier selects the first provider of an ordered list, with a rule
// fallback. A Classifier with no providers classifies everything through
// the rules.
type Classifier struct {
	providers []Provider
	taxonomy  Taxonomy
}

// New builds a Classifier over an ordered provider list. Only the first
// provider is ever called; the order matters to callers assembling the
// list from configuration.
func New(taxonomy Taxonomy, providers ...Provider) *Classifier {
	return &Classifier{providers: providers, taxonomy: taxonomy}
}

// Classify assigns a category and subcategory to one expense. The first
// configured provider gets a single request; any failure on that call
// degrades to the keyword rules. Classify never returns an error.
func (c *Classifier) Classify(ctx context.Context, description string, amount float64, corrections []Correction) Classification {
	if len(c.providers) == 0 {
		return FallbackClassify(description, amount)
	}

	log := logger.FromContext(ctx)
	if len(corrections) > promptCorrections {
		corrections = corrections[:promptCorrections]
	}
	prompt := BuildPrompt(c.taxonomy, description, amount, corrections)

	p := c.providers[0]
	raw, err := p.Complete(ctx, prompt)
	if err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("provider unavailable, using fallback rules")
		return FallbackClassify(description, amount)
	}

	cl, err := parseResponse(raw)
	if err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("invalid provider response, using fallback rules")
		return FallbackClassify(description, amount)
	}

	cl.Provenance = ProvenanceAI
	cl.Provider = p.Name()
	return cl
}

// parseResponse extracts the JSON object from a raw model reply. A
// missing category defaults to Otros; the subcategory is optional and
// kept as returned.
func parseResponse(raw string) (Classification, error) {
	obj := extractJSONObject(raw)
	if obj == "" {
		return Classification{}, fmt.Errorf("parseResponse: no JSON object in response")
	}

	var body struct {
		Categoria    string `json:"categoria"`
		Subcategoria string `json:"subcategoria"`
	}
	if err := json.Unmarshal([]byte(obj), &body); err != nil {
		return Classification{}, fmt.Errorf("parseResponse: %w", err)
	}

	category := strings.TrimSpace(body.Categoria)
	if category == "" {
		category = "Otros"
	}
	return Classification{
		Category:    category,
		Subcategory: strings.TrimSpace(body.Subcategoria),
	}, nil
}

// extractJSONObject returns the first non-nested {...} span in s, or the
// empty string. Models often wrap the object in prose or code fences.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start:], '}')
	if end < 0 {
		return ""
	}
	return s[start : start+end+1]
}
