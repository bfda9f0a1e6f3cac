package cropper

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/menta2k/composition-guide/pkg/composition"
)

// SmartCropper suggests a reframing crop that moves the subject onto a
// rule-of-thirds intersection while keeping the whole subject in view.
type SmartCropper struct {
	evaluator *composition.Evaluator
	config    CropConfig
}

// CropConfig holds configuration for reframing suggestions
type CropConfig struct {
	// MinScale is the smallest crop tried, relative to the largest crop of
	// the requested ratio that fits the frame.
	MinScale float64

	// ScaleStep is the decrement between tried scales.
	ScaleStep float64

	// PaddingRatio grows the subject box on every side before the
	// containment check.
	PaddingRatio float64
}

// AspectRatio represents a crop aspect ratio
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Ratio returns width over height
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns a list of commonly used aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen, Story}
}

// DefaultConfig returns the default reframing configuration
func DefaultConfig() CropConfig {
	return CropConfig{
		MinScale:     0.5,
		ScaleStep:    0.05,
		PaddingRatio: 0.05,
	}
}

// New creates a new SmartCropper with default configuration
func New() *SmartCropper {
	return NewWithConfig(DefaultConfig(), composition.New())
}

// NewWithConfig creates a SmartCropper; the evaluator grades suggestions
func NewWithConfig(config CropConfig, evaluator *composition.Evaluator) *SmartCropper {
	if config.ScaleStep <= 0 {
		config.ScaleStep = DefaultConfig().ScaleStep
	}
	if config.MinScale <= 0 || config.MinScale > 1 {
		config.MinScale = DefaultConfig().MinScale
	}
	return &SmartCropper{evaluator: evaluator, config: config}
}

// Suggestion is a proposed reframing of a frame
type Suggestion struct {
	// Crop is the suggested crop in frame pixels.
	Crop        composition.BoundingBox `json:"crop"`
	AspectRatio string                  `json:"aspect_ratio"`

	// Quality is 1 when the subject center sits exactly on an intersection.
	Quality float64 `json:"quality"`

	// Category is how the evaluator grades the subject inside the crop.
	Category composition.Category `json:"category"`
}

// RatioFor picks the crop ratio a category calls for. Orientation advice
// maps to the matching orientation; everything else keeps the frame ratio.
func RatioFor(category composition.Category, frame composition.FrameDimensions) AspectRatio {
	switch category {
	case composition.AspectSuggestPortrait:
		return Portrait
	case composition.AspectSuggestLandscape:
		return Landscape
	default:
		return AspectRatio{Width: frame.Width, Height: frame.Height, Name: "frame"}
	}
}

// Suggest finds the crop of the given ratio that puts the subject closest
// to a thirds intersection. Ties go to the larger crop.
func (c *SmartCropper) Suggest(box composition.BoundingBox, frame composition.FrameDimensions, ratio AspectRatio) (Suggestion, error) {
	if frame.Width <= 0 || frame.Height <= 0 || box.Width() <= 0 || box.Height() <= 0 {
		return Suggestion{}, fmt.Errorf("%w: box %dx%d in frame %dx%d",
			composition.ErrInvalidInput, box.Width(), box.Height(), frame.Width, frame.Height)
	}
	if ratio.Width <= 0 || ratio.Height <= 0 {
		return Suggestion{}, fmt.Errorf("invalid aspect ratio %d:%d", ratio.Width, ratio.Height)
	}

	padded := c.pad(box, frame)
	fw, fh := float64(frame.Width), float64(frame.Height)
	r := ratio.Ratio()
	maxW := math.Min(fw, fh*r)

	var best composition.BoundingBox
	bestDist := math.Inf(1)
	found := false
	for scale := 1.0; scale >= c.config.MinScale-1e-9; scale -= c.config.ScaleStep {
		cw := maxW * scale
		ch := cw / r
		// half a pixel of slack absorbs float error in the ratio
		if float64(padded.Width()) > cw+0.5 || float64(padded.Height()) > ch+0.5 {
			break
		}

		crop := place(box, frame, cw, ch)
		if !contains(crop, padded) {
			continue
		}
		dist := intersectionDistance(box, crop)
		if dist < bestDist-1e-9 {
			best, bestDist, found = crop, dist, true
		}
	}
	if !found {
		return Suggestion{}, fmt.Errorf("subject does not fit a %s crop", ratio.Name)
	}

	// Farthest a point can be from its nearest intersection
	maxDist := math.Hypot(1.0/3.0, 1.0/3.0)
	s := Suggestion{
		Crop:        best,
		AspectRatio: ratio.Name,
		Quality:     math.Max(0, 1-bestDist/maxDist),
	}

	inner := composition.BoundingBox{
		Left:   box.Left - best.Left,
		Top:    box.Top - best.Top,
		Right:  box.Right - best.Left,
		Bottom: box.Bottom - best.Top,
	}
	category, err := c.evaluator.Evaluate(inner, composition.FrameDimensions{Width: best.Width(), Height: best.Height()})
	if err != nil {
		return Suggestion{}, err
	}
	s.Category = category
	return s, nil
}

// SuggestAll tries every ratio and skips the ones the subject cannot fit
func (c *SmartCropper) SuggestAll(box composition.BoundingBox, frame composition.FrameDimensions, ratios []AspectRatio) []Suggestion {
	var results []Suggestion
	for _, ratio := range ratios {
		s, err := c.Suggest(box, frame, ratio)
		if err != nil {
			continue
		}
		results = append(results, s)
	}
	return results
}

// Apply cuts the suggested crop out of img
func (c *SmartCropper) Apply(img image.Image, s Suggestion) image.Image {
	b := img.Bounds()
	rect := image.Rect(s.Crop.Left, s.Crop.Top, s.Crop.Right, s.Crop.Bottom).Add(b.Min)
	return imaging.Crop(img, rect)
}

func (c *SmartCropper) pad(box composition.BoundingBox, frame composition.FrameDimensions) composition.BoundingBox {
	px := int(math.Round(float64(box.Width()) * c.config.PaddingRatio))
	py := int(math.Round(float64(box.Height()) * c.config.PaddingRatio))
	return composition.BoundingBox{
		Left:   maxInt(0, box.Left-px),
		Top:    maxInt(0, box.Top-py),
		Right:  minInt(frame.Width, box.Right+px),
		Bottom: minInt(frame.Height, box.Bottom+py),
	}
}

// place positions a cw x ch crop so the subject center lands on the
// intersection nearest to where it already is, then clamps to the frame.
func place(box composition.BoundingBox, frame composition.FrameDimensions, cw, ch float64) composition.BoundingBox {
	sx, sy := box.CenterX(), box.CenterY()
	tx := nearestThird(sx / float64(frame.Width))
	ty := nearestThird(sy / float64(frame.Height))

	x0 := clamp(sx-tx*cw, 0, float64(frame.Width)-cw)
	y0 := clamp(sy-ty*ch, 0, float64(frame.Height)-ch)

	left := int(math.Round(x0))
	top := int(math.Round(y0))
	return composition.BoundingBox{
		Left:   left,
		Top:    top,
		Right:  minInt(frame.Width, left+int(math.Round(cw))),
		Bottom: minInt(frame.Height, top+int(math.Round(ch))),
	}
}

func intersectionDistance(box, crop composition.BoundingBox) float64 {
	cx := (box.CenterX() - float64(crop.Left)) / float64(crop.Width())
	cy := (box.CenterY() - float64(crop.Top)) / float64(crop.Height())
	return math.Hypot(cx-nearestThird(cx), cy-nearestThird(cy))
}

func nearestThird(v float64) float64 {
	if v < 0.5 {
		return 1.0 / 3.0
	}
	return 2.0 / 3.0
}

func contains(outer, inner composition.BoundingBox) bool {
	return inner.Left >= outer.Left && inner.Top >= outer.Top &&
		inner.Right <= outer.Right && inner.Bottom <= outer.Bottom
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
