package imaging

import (
	"fmt"
	"image"
	"math"
)

// Formula is a trimmed formula raster with its baseline measured from the
// bottom edge.
type Formula struct {
	Image    image.Image
	Width    int
	Height   int
	Baseline int
}

// MeasureFormula trims a rasterized formula that starts with a short rule on
// its baseline, locates the baseline by probing a 2px strip at probeX (relative
// to the trimmed left edge), then removes the leftmost cropX pixels holding
// the rule and trims again.
//
// The rule has a visible thickness, so the baseline is taken as a midpoint of
// the probed strip skewed 1:7 toward its lower edge.
func MeasureFormula(img image.Image, probeX, cropX int) (*Formula, error) {
	outer, ok := ContentBounds(img, img.Bounds())
	if !ok {
		return nil, fmt.Errorf("formula image is blank")
	}

	strip := image.Rect(outer.Min.X+probeX, outer.Min.Y, outer.Min.X+probeX+2, outer.Max.Y)
	rule, ok := ContentBounds(img, strip)
	if !ok {
		return nil, fmt.Errorf("no baseline rule found at x=%d", probeX)
	}

	upper := float64(rule.Min.Y)
	lower := float64(rule.Max.Y)
	baselineFromTop := int(math.Round((upper + 7*lower) / 8))

	body := image.Rect(outer.Min.X+cropX, outer.Min.Y, outer.Max.X, outer.Max.Y)
	content, ok := ContentBounds(img, body)
	if !ok {
		return nil, fmt.Errorf("formula is empty after removing the baseline rule")
	}

	baseline := content.Max.Y - baselineFromTop
	if baseline < 0 {
		baseline = 0
	}

	return &Formula{
		Image:    Crop(img, content),
		Width:    content.Dx(),
		Height:   content.Dy(),
		Baseline: baseline,
	}, nil
}
