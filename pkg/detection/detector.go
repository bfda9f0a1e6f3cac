package detection

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/menta2k/composition-guide/pkg/client"
	"github.com/menta2k/composition-guide/pkg/composition"
	"github.com/menta2k/composition-guide/pkg/processing"
	"github.com/menta2k/composition-guide/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks the model for every object it can classify
const DefaultPrompt = `You are an object detector for a camera viewfinder.

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- Labels are short lowercase English nouns. Use "person" for any human.
- Boxes must tightly enclose each object. List at most 10 objects, most prominent first.
- Confidence is your certainty in [0,1].
- If nothing is visible, return {"objects": [], "description": "empty scene", "tags": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

const maxTags = 5

// Source produces the classified objects of one frame
type Source interface {
	Detect(ctx context.Context, img image.Image) (*types.DetectionResult, error)
}

// EncodeOptions control how a frame is sent to a vision model
type EncodeOptions struct {
	Format  string
	MaxDim  int
	Quality int
}

// DefaultEncodeOptions returns the encoding used when none is configured
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Format: "jpg", MaxDim: 1024, Quality: 85}
}

// ModelSource detects objects by prompting a vision model
type ModelSource struct {
	client    client.VisionClient
	processor *processing.Processor
	model     string
	prompt    string
	encode    EncodeOptions
}

// NewModelSource creates a Source backed by a vision client
func NewModelSource(c client.VisionClient, model string, encode EncodeOptions) *ModelSource {
	return &ModelSource{
		client:    c,
		processor: processing.NewProcessor(),
		model:     model,
		prompt:    DefaultPrompt,
		encode:    encode,
	}
}

// SetPrompt replaces the detection prompt
func (s *ModelSource) SetPrompt(prompt string) {
	s.prompt = prompt
}

// Detect implements Source
func (s *ModelSource) Detect(ctx context.Context, img image.Image) (*types.DetectionResult, error) {
	imgB64, err := s.processor.PrepareImageForModel(img, s.encode.Format, s.encode.MaxDim, s.encode.Quality)
	if err != nil {
		return nil, fmt.Errorf("prepare frame: %w", err)
	}

	result, err := s.client.DetectObjects(ctx, s.model, s.prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}
	return Normalize(result), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (s *ModelSource) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := s.processor.PrepareImageForModel(img, s.encode.Format, s.encode.MaxDim, s.encode.Quality)
	if err != nil {
		return "", fmt.Errorf("prepare frame: %w", err)
	}
	return s.client.SimpleQuery(ctx, s.model, SimpleTestPrompt, imgB64)
}

// Normalize clamps boxes to the frame, drops empty boxes, and cleans tags
func Normalize(result *types.DetectionResult) *types.DetectionResult {
	if result == nil {
		return &types.DetectionResult{Objects: []types.Object{}}
	}

	objects := make([]types.Object, 0, len(result.Objects))
	for _, obj := range result.Objects {
		obj.Box = normalizeBox(obj.Box)
		if obj.Box.W <= 0 || obj.Box.H <= 0 {
			continue
		}
		obj.Label = strings.ToLower(strings.TrimSpace(obj.Label))
		obj.Confidence = clamp(obj.Confidence, 0, 1)
		objects = append(objects, obj)
	}

	result.Objects = objects
	result.Tags = normalizeTags(result.Tags)
	return result
}

// SubjectSelector picks the primary subject among detected objects
type SubjectSelector struct {
	// Labels accepted as a subject; empty accepts any label.
	Labels []string

	// MinConfidence is exclusive: a subject must score strictly above it.
	MinConfidence float64
}

// DefaultSubjectSelector accepts people detected above 0.7 confidence
func DefaultSubjectSelector() SubjectSelector {
	return SubjectSelector{Labels: []string{"person"}, MinConfidence: 0.7}
}

// Select returns the highest-confidence qualifying object
func (s SubjectSelector) Select(objects []types.Object) (types.Object, bool) {
	candidates := make([]types.Object, 0, len(objects))
	for _, obj := range objects {
		if obj.Confidence > s.MinConfidence && s.accepts(obj.Label) {
			candidates = append(candidates, obj)
		}
	}
	if len(candidates) == 0 {
		return types.Object{}, false
	}

	// Stable so that ties keep detector order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates[0], true
}

func (s SubjectSelector) accepts(label string) bool {
	if len(s.Labels) == 0 {
		return true
	}
	for _, l := range s.Labels {
		if strings.EqualFold(strings.TrimSpace(l), label) {
			return true
		}
	}
	return false
}

// ToBoundingBox converts a normalized box to pixel coordinates in frame
func ToBoundingBox(b types.Box, frame composition.FrameDimensions) composition.BoundingBox {
	fw, fh := float64(frame.Width), float64(frame.Height)
	return composition.BoundingBox{
		Left:   int(math.Round(b.X * fw)),
		Top:    int(math.Round(b.Y * fh)),
		Right:  int(math.Round((b.X + b.W) * fw)),
		Bottom: int(math.Round((b.Y + b.H) * fh)),
	}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.X+b.W, 0, 1) - x,
		H: clamp(b.Y+b.H, 0, 1) - y,
	}
}

// normalizeTags ensures tags are cleaned and limited to maxTags entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, maxTags)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
