package compositionguide

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/menta2k/composition-guide/pkg/composition"
	"github.com/menta2k/composition-guide/pkg/types"
	"github.com/menta2k/composition-guide/pkg/vision"
)

type stubSource struct {
	objects []types.Object
	err     error
	empty   bool
	calls   int
}

func (s *stubSource) Detect(ctx context.Context, img image.Image) (*types.DetectionResult, error) {
	s.calls++
	if s.err != nil || s.empty {
		return nil, s.err
	}
	return &types.DetectionResult{Objects: s.objects}, nil
}

type countingSpeaker struct {
	said []string
}

func (c *countingSpeaker) Speak(ctx context.Context, text string, flush bool) error {
	c.said = append(c.said, text)
	return nil
}

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// createTestImage creates a 1920x1080 frame
func createTestImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 1920, 1080))
}

// person returns a person detection for a pixel box in a 1920x1080 frame
func person(confidence float64, left, top, right, bottom int) types.Object {
	return types.Object{
		Label:      "person",
		Confidence: confidence,
		Box: types.Box{
			X: float64(left) / 1920,
			Y: float64(top) / 1080,
			W: float64(right-left) / 1920,
			H: float64(bottom-top) / 1080,
		},
	}
}

func TestNew(t *testing.T) {
	guide := New(&stubSource{}, DefaultOptions())
	if guide == nil {
		t.Fatal("New() returned nil")
	}
	if guide.frameGate != nil {
		t.Error("Frame gate should be off by default")
	}
	if !guide.VoiceEnabled() {
		t.Error("Voice should be enabled by default")
	}
}

func TestAnalyzeFrameSearching(t *testing.T) {
	guide := New(&stubSource{}, DefaultOptions())

	result, err := guide.AnalyzeFrame(context.Background(), createTestImage(), t0)
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Category != composition.SearchingForSubject {
		t.Errorf("Expected searching, got %s", result.Category)
	}
	if result.Subject != nil {
		t.Error("Expected no subject")
	}
}

func TestAnalyzeFrameNoSubject(t *testing.T) {
	source := &stubSource{objects: []types.Object{
		{Label: "chair", Confidence: 0.95, Box: types.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}},
		person(0.4, 100, 100, 400, 800),
	}}
	guide := New(source, DefaultOptions())

	result, err := guide.AnalyzeFrame(context.Background(), createTestImage(), t0)
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Category != composition.NoSubject {
		t.Errorf("Expected no subject, got %s", result.Category)
	}
	if result.Objects != 2 {
		t.Errorf("Expected 2 objects, got %d", result.Objects)
	}
}

func TestAnalyzeFrameEvaluatesSubject(t *testing.T) {
	source := &stubSource{objects: []types.Object{
		person(0.8, 100, 100, 200, 200),
		person(0.95, 1200, 400, 1500, 900),
	}}
	opts := DefaultOptions()
	opts.Composition.MinAreaRatio = 0.07
	guide := New(source, opts)

	result, err := guide.AnalyzeFrame(context.Background(), createTestImage(), t0)
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Subject == nil || result.Subject.Confidence != 0.95 {
		t.Fatalf("Expected the 0.95 person as subject, got %+v", result.Subject)
	}

	want := composition.BoundingBox{Left: 1200, Top: 400, Right: 1500, Bottom: 900}
	if result.Box == nil || *result.Box != want {
		t.Errorf("Expected box %+v, got %+v", want, result.Box)
	}
	if result.Category != composition.AspectSuggestPortrait {
		t.Errorf("Expected portrait suggestion, got %s", result.Category)
	}
	if result.Metrics == nil {
		t.Error("Expected metrics to be reported")
	}
	if result.Message != composition.Message("en", composition.AspectSuggestPortrait) {
		t.Errorf("Unexpected message %q", result.Message)
	}
}

func TestAnalyzeFrameDetectorError(t *testing.T) {
	guide := New(&stubSource{err: errors.New("model offline")}, DefaultOptions())

	if _, err := guide.AnalyzeFrame(context.Background(), createTestImage(), t0); err == nil {
		t.Error("Expected detector error to propagate")
	}
}

func TestAnalyzeFrameNilDetection(t *testing.T) {
	guide := New(&stubSource{empty: true}, DefaultOptions())

	result, err := guide.AnalyzeFrame(context.Background(), createTestImage(), t0)
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Objects != 0 || result.Category != composition.SearchingForSubject {
		t.Errorf("Expected searching with no objects, got %+v", result)
	}
}

func TestAnalyzeFrameInvalidGeometry(t *testing.T) {
	source := &stubSource{objects: []types.Object{
		{Label: "person", Confidence: 0.9, Box: types.Box{X: 0.5, Y: 0.5, W: 0.0001, H: 0.3}},
	}}
	guide := New(source, DefaultOptions())

	result, err := guide.AnalyzeFrame(context.Background(), createTestImage(), t0)
	if err != nil {
		t.Fatalf("Invalid geometry should not be an error: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipGeometry {
		t.Errorf("Expected geometry skip, got %+v", result)
	}
	if result.Category != composition.Unknown {
		t.Errorf("Expected no category, got %s", result.Category)
	}
}

func TestAnalyzeFrameSpeechGate(t *testing.T) {
	speaker := &countingSpeaker{}
	opts := DefaultOptions()
	opts.Speaker = speaker
	guide := New(&stubSource{}, opts)
	ctx := context.Background()
	img := createTestImage()

	for _, offset := range []time.Duration{0, 2 * time.Second, 3001 * time.Millisecond} {
		if _, err := guide.AnalyzeFrame(ctx, img, t0.Add(offset)); err != nil {
			t.Fatalf("AnalyzeFrame failed: %v", err)
		}
	}
	if len(speaker.said) != 2 {
		t.Errorf("Expected 2 utterances, got %d", len(speaker.said))
	}

	if guide.ToggleVoice() {
		t.Error("Toggle should turn voice off")
	}
	result, _ := guide.AnalyzeFrame(ctx, img, t0.Add(time.Minute))
	if result.Spoken {
		t.Error("Voice is off, nothing should be spoken")
	}
	if result.Message == "" {
		t.Error("Text guidance should continue with voice off")
	}
}

func TestAnalyzeFrameSkipWhileGated(t *testing.T) {
	source := &stubSource{}
	opts := DefaultOptions()
	opts.SkipWhileGated = true
	guide := New(source, opts)
	ctx := context.Background()
	img := createTestImage()

	first, _ := guide.AnalyzeFrame(ctx, img, t0)
	if first.Skipped {
		t.Fatal("First frame should be analyzed")
	}

	second, _ := guide.AnalyzeFrame(ctx, img, t0.Add(time.Second))
	if !second.Skipped || second.SkipReason != SkipGated {
		t.Errorf("Expected gated skip, got %+v", second)
	}
	if source.calls != 1 {
		t.Errorf("Gated frame must not reach the detector, got %d calls", source.calls)
	}

	guide.Reset()
	third, _ := guide.AnalyzeFrame(ctx, img, t0.Add(2*time.Second))
	if third.Skipped {
		t.Error("Reset should re-arm the frame gate")
	}
}

func TestAnalyzeFrameLocalDetector(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			if x > 160 && x < 320 && y > 120 && y < 360 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{uint8(x / 5), uint8(y / 4), 64, 255})
			}
		}
	}

	opts := DefaultOptions()
	opts.Selector.Labels = nil
	opts.Selector.MinConfidence = 0.9
	guide := New(vision.New(), opts)

	result, err := guide.AnalyzeFrame(context.Background(), img, t0)
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Subject == nil {
		t.Fatal("Expected the strongest salient region as subject")
	}
	if result.Subject.Label != vision.SalientLabel {
		t.Errorf("Expected salient label, got %q", result.Subject.Label)
	}
}

func TestOverlay(t *testing.T) {
	guide := New(&stubSource{}, DefaultOptions())
	img := image.NewRGBA(image.Rect(0, 0, 90, 60))

	out := guide.Overlay(img, FrameResult{Category: composition.SearchingForSubject})
	if out.Bounds().Dx() != 90 || out.Bounds().Dy() != 60 {
		t.Errorf("Overlay changed frame size to %v", out.Bounds())
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetVersion())
	}
}
