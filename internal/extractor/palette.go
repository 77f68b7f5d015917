package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sort"

	// Register the decoders for the formats screenshots arrive in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tokens-cli/internal/token"
)

const (
	// defaultMaxColors caps how many palette entries one image yields.
	defaultMaxColors = 6

	// maxSamples bounds pixel sampling so large screenshots stay cheap.
	maxSamples = 64 * 64

	// bucketShift quantizes each 8-bit channel to 4 bits, so visually
	// close pixels land in the same histogram bucket.
	bucketShift = 4
)

// Palette extracts the dominant colors of an image by histogram
// quantization. It is deliberately crude next to a vision model, but it is
// fast, deterministic, and needs no network, which makes it a good
// always-on companion extractor.
type Palette struct {
	// MaxColors caps palette size. Zero means defaultMaxColors.
	MaxColors int
}

func (p *Palette) Name() string {
	return "palette"
}

type colorBucket struct {
	count   int
	r, g, b uint64 // channel sums for averaging
}

func (p *Palette) Extract(ctx context.Context, input []byte) (*token.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, eris.Wrap(err, "palette: decoding image")
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, eris.Errorf("palette: empty %s image", format)
	}

	step := 1
	for (w/step)*(h/step) > maxSamples {
		step++
	}

	buckets := make(map[uint32]*colorBucket)
	sampled := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue // mostly transparent
			}
			r8, g8, b8 := uint32(r>>8), uint32(g>>8), uint32(b>>8)
			key := (r8>>bucketShift)<<16 | (g8>>bucketShift)<<8 | (b8 >> bucketShift)
			bk := buckets[key]
			if bk == nil {
				bk = &colorBucket{}
				buckets[key] = bk
			}
			bk.count++
			bk.r += uint64(r8)
			bk.g += uint64(g8)
			bk.b += uint64(b8)
			sampled++
		}
	}
	if sampled == 0 {
		return nil, eris.New("palette: image has no opaque pixels")
	}

	ranked := make([]*colorBucket, 0, len(buckets))
	for _, bk := range buckets {
		ranked = append(ranked, bk)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })

	maxColors := p.MaxColors
	if maxColors <= 0 {
		maxColors = defaultMaxColors
	}
	if len(ranked) > maxColors {
		ranked = ranked[:maxColors]
	}

	top := ranked[0].count
	tokens := make([]token.Token, 0, len(ranked))
	for i, bk := range ranked {
		n := uint64(bk.count)
		c := colorful.Color{
			R: float64(bk.r/n) / 255.0,
			G: float64(bk.g/n) / 255.0,
			B: float64(bk.b/n) / 255.0,
		}
		share := float64(bk.count) / float64(sampled)
		// Prevalence-scaled confidence: the most frequent color is the
		// most trustworthy palette entry.
		conf := 0.4 + 0.5*float64(bk.count)/float64(top)
		tokens = append(tokens, token.New(
			token.DomainColor,
			fmt.Sprintf("palette-%d", i+1),
			c.Hex(),
			conf,
			map[string]any{"share": share, "format": format},
		))
	}

	return &token.ExtractionResult{
		ExtractorName: p.Name(),
		Tokens:        tokens,
	}, nil
}
