package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/tokens-cli/internal/token"
)

func colorToken(value string, confidence float64) token.Token {
	return token.New(token.DomainColor, value, value, confidence, nil)
}

func TestParseCSSColor_Notations(t *testing.T) {
	for _, tc := range []struct {
		in        string
		wantHex   string
		wantAlpha float64
	}{
		{"#336699", "#336699", 1.0},
		{"#369", "#336699", 1.0},
		{"#33669980", "#336699", 128.0 / 255.0},
		{"rgb(51, 102, 153)", "#336699", 1.0},
		{"rgba(51, 102, 153, 0.5)", "#336699", 0.5},
		{"rgb(20%, 40%, 60%)", "#336699", 1.0},
		{"RGB(51, 102, 153)", "#336699", 1.0},
		{"hsl(0, 100%, 50%)", "#ff0000", 1.0},
		{"hsla(0, 100%, 50%, 0.25)", "#ff0000", 0.25},
	} {
		c, alpha, err := ParseCSSColor(tc.in)
		assert.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.wantHex, c.Hex(), "input %q", tc.in)
		assert.InDelta(t, tc.wantAlpha, alpha, 0.01, "input %q", tc.in)
	}
}

func TestParseCSSColor_Rejects(t *testing.T) {
	for _, in := range []string{"", "papayawhip", "#12", "#12345", "rgb(a,b,c)", "hsl()", "cmyk(0,0,0,1)"} {
		_, _, err := ParseCSSColor(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestColorSimilar_JustNoticeableDifference(t *testing.T) {
	s := NewColorStrategy(2.0)

	same, err := s.Parse(colorToken("#336699", 0.9))
	assert.NoError(t, err)
	alsoSame, err := s.Parse(colorToken("rgb(51, 102, 153)", 0.9))
	assert.NoError(t, err)
	nearby, err := s.Parse(colorToken("#346699", 0.9))
	assert.NoError(t, err)
	distant, err := s.Parse(colorToken("#996633", 0.9))
	assert.NoError(t, err)

	assert.True(t, s.Similar(same, alsoSame), "identical colors in different notations must merge")
	assert.True(t, s.Similar(same, nearby), "sub-JND delta must merge")
	assert.False(t, s.Similar(same, distant))
}

func TestColorMerge_AcrossNotations(t *testing.T) {
	e := NewEngine(NewColorStrategy(2.0), 0.1)

	merged := e.Merge([]Group{
		{Source: "ai-vision", Tokens: []token.Token{colorToken("#336699", 0.8)}},
		{Source: "palette", Tokens: []token.Token{colorToken("rgb(51, 102, 153)", 0.7)}},
		{Source: "css-scan", Tokens: []token.Token{colorToken("hsl(0, 100%, 50%)", 0.9)}},
	})

	assert.Len(t, merged, 2)
}

func TestColorMerge_MalformedNotationSkipped(t *testing.T) {
	e := NewEngine(NewColorStrategy(2.0), 0.1)

	merged := e.Merge([]Group{{
		Source: "x",
		Tokens: []token.Token{
			colorToken("#336699", 0.9),
			colorToken("definitely-not-a-color", 0.9),
		},
	}})

	assert.Len(t, merged, 1)
}
