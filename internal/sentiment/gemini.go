package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/util"
)

// generator produces the raw JSON text for a prompt.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func (g *genaiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text part in gemini response")
	}
	return text, nil
}

// GeminiClassifier labels reviews with a Gemini model using structured output.
type GeminiClassifier struct {
	gen        generator
	maxRetries int
	backoff    time.Duration
}

type geminiVerdict struct {
	Index      int    `json:"index"`
	Verdict    string `json:"verdict"`
	Confidence int    `json:"confidence"`
}

func NewGeminiClassifier(ctx context.Context, apiKey, modelID string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"index": {
						Type:        genai.TypeInteger,
						Description: "The number of the review being labelled, as given in the prompt.",
					},
					"verdict": {
						Type: genai.TypeString,
						Enum: []string{string(models.VerdictPositive), string(models.VerdictNeutral), string(models.VerdictNegative)},
					},
					"confidence": {
						Type:        genai.TypeInteger,
						Description: "Confidence in the verdict from 0 to 100.",
					},
				},
				Required: []string{"index", "verdict", "confidence"},
			},
		},
	}

	return newGeminiClassifier(&genaiGenerator{client: client, model: modelID, config: config}), nil
}

func newGeminiClassifier(gen generator) *GeminiClassifier {
	return &GeminiClassifier{gen: gen, maxRetries: 2, backoff: 2 * time.Second}
}

func buildPrompt(entries []Entry) string {
	var b strings.Builder
	b.WriteString("Classify the sentiment of each customer review below as Positive, Neutral or Negative.\n")
	b.WriteString("Return one JSON object per review with its index, verdict and a 0-100 confidence.\n\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. Product: %q\n   Review: %q\n", i, e.Subject, e.Text)
	}
	return b.String()
}

func (c *GeminiClassifier) Classify(ctx context.Context, entries []Entry) ([]models.Sentiment, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	prompt := buildPrompt(entries)

	var out []models.Sentiment
	err := util.RetryWithBackoff(ctx, c.maxRetries, c.backoff, func(attempt int) error {
		text, err := c.gen.generate(ctx, prompt)
		if err != nil {
			return err
		}
		out, err = parseGeminiVerdicts(text, len(entries))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseGeminiVerdicts(text string, n int) ([]models.Sentiment, error) {
	// Clean up potential markdown formatting just in case
	jsonStr := strings.TrimSpace(text)
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")

	var raw []geminiVerdict
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}

	out := make([]models.Sentiment, n)
	seen := make([]bool, n)
	for _, v := range raw {
		if v.Index < 0 || v.Index >= n {
			continue
		}
		verdict, err := models.ParseVerdict(v.Verdict)
		if err != nil {
			return nil, fmt.Errorf("gemini verdict for review %d: %w", v.Index, err)
		}
		out[v.Index] = models.Sentiment{Verdict: verdict, Confidence: clampConfidence(v.Confidence)}
		seen[v.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("gemini response missing review %d", i)
		}
	}
	return out, nil
}
