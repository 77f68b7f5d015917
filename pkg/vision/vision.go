// Package vision implements an extractor backed by the Anthropic vision
// API. The model receives the raw screenshot and returns design tokens as
// strict JSON, which this package validates and normalizes before handing
// them to the pipeline.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tokens-cli/internal/token"
)

// DefaultModel is the vision-capable model used when none is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

const defaultMaxTokens = 4096

const extractionPrompt = `Analyze this UI screenshot and extract its design tokens.

Return ONLY a JSON array, no prose, where each element is:
{"domain": "color"|"spacing"|"shadow"|"typography", "name": string, "value": <domain value>, "confidence": number between 0 and 1, "metadata": object (optional)}

Value encodings:
- color: a CSS color string, e.g. "#1a2b3c" or "rgb(26, 43, 60)"
- spacing: a number of pixels
- shadow: {"offset_x": n, "offset_y": n, "blur_radius": n, "spread_radius": n, "color": "#rrggbb", "opacity": n}
- typography: {"family": string, "weight": n, "size": n, "role": string (optional)}

Include every distinct token you can identify with an honest confidence.`

// completer abstracts the one SDK call the extractor makes, returning the
// response's concatenated text. Lets tests script model output.
type completer interface {
	complete(ctx context.Context, params sdk.MessageNewParams) (string, error)
}

type sdkCompleter struct {
	client sdk.Client
}

func (c *sdkCompleter) complete(ctx context.Context, params sdk.MessageNewParams) (string, error) {
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "vision: create message")
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Config configures the vision extractor.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// RequestsPerMinute throttles API calls. Zero disables throttling.
	RequestsPerMinute int
}

// Extractor calls the vision model once per input image.
type Extractor struct {
	completer completer
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// New builds a vision extractor from config, applying defaults for the
// model and token limit.
func New(cfg Config) *Extractor {
	e := &Extractor{
		completer: &sdkCompleter{client: sdk.NewClient(option.WithAPIKey(cfg.APIKey))},
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.maxTokens <= 0 {
		e.maxTokens = defaultMaxTokens
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return e
}

func (e *Extractor) Name() string {
	return "vision"
}

// Extract sends the image to the model and parses the returned token JSON.
func (e *Extractor) Extract(ctx context.Context, input []byte) (*token.ExtractionResult, error) {
	if len(input) == 0 {
		return nil, eris.New("vision: empty input")
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	mediaType := http.DetectContentType(input)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, eris.Errorf("vision: input is %s, not an image", mediaType)
	}

	start := time.Now()
	text, err := e.completer.complete(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(input)),
				sdk.NewTextBlock(extractionPrompt),
			),
		},
	})
	if err != nil {
		return nil, err
	}

	tokens, err := ParseTokens(text)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("vision: extraction complete",
		zap.String("model", e.model),
		zap.Int("tokens", len(tokens)),
	)
	return &token.ExtractionResult{
		ExtractorName: e.Name(),
		Tokens:        tokens,
		DurationMs:    time.Since(start).Milliseconds(),
	}, nil
}

// wireToken is the model's JSON shape for one token.
type wireToken struct {
	Domain     string          `json:"domain"`
	Name       string          `json:"name"`
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
	Metadata   map[string]any  `json:"metadata"`
}

// ParseTokens decodes the model's JSON array into tokens. Entries missing
// a domain or name are skipped with a warning rather than failing the
// whole response; models occasionally emit one malformed element in an
// otherwise good array.
func ParseTokens(text string) ([]token.Token, error) {
	payload := stripFences(text)

	var wire []wireToken
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, eris.Wrap(err, "vision: response is not a JSON token array")
	}

	out := make([]token.Token, 0, len(wire))
	for _, w := range wire {
		if w.Domain == "" || w.Name == "" || len(w.Value) == 0 {
			zap.L().Warn("vision: skipping incomplete token entry",
				zap.String("domain", w.Domain),
				zap.String("name", w.Name),
			)
			continue
		}
		var value any
		if err := json.Unmarshal(w.Value, &value); err != nil {
			zap.L().Warn("vision: skipping token with undecodable value",
				zap.String("name", w.Name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, token.New(token.Domain(w.Domain), w.Name, value, w.Confidence, w.Metadata))
	}
	return out, nil
}

// stripFences removes a markdown code fence around the JSON payload if the
// model added one despite instructions.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
