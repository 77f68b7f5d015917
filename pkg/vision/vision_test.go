package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tokens-cli/internal/token"
)

type stubCompleter struct {
	text   string
	err    error
	params sdk.MessageNewParams
	calls  int
}

func (s *stubCompleter) complete(_ context.Context, params sdk.MessageNewParams) (string, error) {
	s.calls++
	s.params = params
	return s.text, s.err
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const sampleResponse = `[
  {"domain": "color", "name": "brand-primary", "value": "#3366cc", "confidence": 0.92},
  {"domain": "spacing", "name": "space-4", "value": 16, "confidence": 0.85},
  {"domain": "typography", "name": "body", "value": {"family": "Inter", "weight": 400, "size": 16}, "confidence": 0.8}
]`

func TestExtractParsesModelResponse(t *testing.T) {
	stub := &stubCompleter{text: sampleResponse}
	e := New(Config{APIKey: "test-key"})
	e.completer = stub

	res, err := e.Extract(context.Background(), testPNG(t))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "vision", res.ExtractorName)
	require.Len(t, res.Tokens, 3)
	assert.Equal(t, token.DomainColor, res.Tokens[0].Domain)
	assert.Equal(t, "#3366cc", res.Tokens[0].Value)
	assert.InDelta(t, 0.92, res.Tokens[0].Confidence, 1e-9)
	assert.Equal(t, token.DomainSpacing, res.Tokens[1].Domain)
	assert.Equal(t, 16.0, res.Tokens[1].Value)

	ty, ok := res.Tokens[2].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Inter", ty["family"])

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, sdk.Model(DefaultModel), stub.params.Model)
	require.Len(t, stub.params.Messages, 1)
}

func TestExtractRejectsNonImage(t *testing.T) {
	stub := &stubCompleter{text: sampleResponse}
	e := New(Config{APIKey: "test-key"})
	e.completer = stub

	_, err := e.Extract(context.Background(), []byte("plain text payload"))
	require.Error(t, err)
	assert.Zero(t, stub.calls, "no API call for a non-image input")
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	e := New(Config{APIKey: "test-key"})
	_, err := e.Extract(context.Background(), nil)
	assert.Error(t, err)
}

func TestExtractPropagatesAPIError(t *testing.T) {
	stub := &stubCompleter{err: eris.New("overloaded")}
	e := New(Config{APIKey: "test-key"})
	e.completer = stub

	_, err := e.Extract(context.Background(), testPNG(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestParseTokensStripsCodeFence(t *testing.T) {
	fenced := "```json\n" + sampleResponse + "\n```"
	tokens, err := ParseTokens(fenced)
	require.NoError(t, err)
	assert.Len(t, tokens, 3)
}

func TestParseTokensSkipsIncompleteEntries(t *testing.T) {
	tokens, err := ParseTokens(`[
	  {"domain": "color", "name": "ok", "value": "#fff", "confidence": 0.9},
	  {"domain": "", "name": "no-domain", "value": 1, "confidence": 0.9},
	  {"domain": "spacing", "name": "", "value": 8, "confidence": 0.9},
	  {"domain": "spacing", "name": "no-value", "confidence": 0.9}
	]`)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "ok", tokens[0].Name)
}

func TestParseTokensClampsConfidence(t *testing.T) {
	tokens, err := ParseTokens(`[{"domain": "spacing", "name": "s", "value": 8, "confidence": 2.5}]`)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, 1.0, tokens[0].Confidence)
}

func TestParseTokensRejectsProse(t *testing.T) {
	_, err := ParseTokens("Sure! Here are the tokens I found:")
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	e := New(Config{APIKey: "k"})
	assert.Equal(t, DefaultModel, e.model)
	assert.Equal(t, int64(defaultMaxTokens), e.maxTokens)
	assert.Nil(t, e.limiter)

	throttled := New(Config{APIKey: "k", RequestsPerMinute: 30})
	assert.NotNil(t, throttled.limiter)
}
