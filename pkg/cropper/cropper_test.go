package cropper

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/menta2k/composition-guide/pkg/composition"
)

var fullHD = composition.FrameDimensions{Width: 1920, Height: 1080}

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func TestNew(t *testing.T) {
	cropper := New()
	if cropper == nil {
		t.Fatal("New() returned nil")
	}

	if cropper.config.MinScale != 0.5 {
		t.Errorf("Expected MinScale 0.5, got %f", cropper.config.MinScale)
	}
}

func TestNewWithConfigFixesInvalidSteps(t *testing.T) {
	cropper := NewWithConfig(CropConfig{MinScale: 2, ScaleStep: 0}, composition.New())

	if cropper.config.ScaleStep != DefaultConfig().ScaleStep {
		t.Errorf("Expected default step, got %f", cropper.config.ScaleStep)
	}
	if cropper.config.MinScale != DefaultConfig().MinScale {
		t.Errorf("Expected default min scale, got %f", cropper.config.MinScale)
	}
}

func TestSuggestMovesCenteredSubjectToThirds(t *testing.T) {
	cropper := New()
	box := composition.BoundingBox{Left: 860, Top: 440, Right: 1060, Bottom: 640}

	s, err := cropper.Suggest(box, fullHD, RatioFor(composition.CenteredSubject, fullHD))
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}

	if s.Quality < 0.99 {
		t.Errorf("Expected subject on an intersection, quality %f", s.Quality)
	}
	if !contains(s.Crop, box) {
		t.Errorf("Crop %+v cuts the subject %+v", s.Crop, box)
	}
	if s.Crop.Width() >= fullHD.Width {
		t.Errorf("Expected a tighter crop, got width %d", s.Crop.Width())
	}

	ratio := float64(s.Crop.Width()) / float64(s.Crop.Height())
	if math.Abs(ratio-16.0/9.0) > 0.01 {
		t.Errorf("Expected frame aspect ratio, got %.3f", ratio)
	}
	if s.Category == composition.CenteredSubject || s.Category == composition.RuleOfThirdsViolation {
		t.Errorf("Reframed subject should satisfy thirds placement, got %s", s.Category)
	}
}

func TestSuggestSubjectTooLarge(t *testing.T) {
	cropper := New()
	box := composition.BoundingBox{Left: 0, Top: 0, Right: 1920, Bottom: 1080}

	if _, err := cropper.Suggest(box, fullHD, Portrait); err == nil {
		t.Error("Expected error when the subject cannot fit the ratio")
	}
}

func TestSuggestInvalidInput(t *testing.T) {
	cropper := New()

	_, err := cropper.Suggest(composition.BoundingBox{Left: 10, Top: 10, Right: 10, Bottom: 50}, fullHD, Square)
	if !errors.Is(err, composition.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	_, err = cropper.Suggest(composition.BoundingBox{Left: 0, Top: 0, Right: 10, Bottom: 10}, fullHD, AspectRatio{Name: "broken"})
	if err == nil {
		t.Error("Expected error for zero aspect ratio")
	}
}

func TestSuggestAllSkipsUnfit(t *testing.T) {
	cropper := New()
	box := composition.BoundingBox{Left: 0, Top: 400, Right: 1920, Bottom: 600}

	results := cropper.SuggestAll(box, fullHD, CommonAspectRatios())
	if len(results) != 1 {
		t.Fatalf("Expected one fitting ratio, got %d", len(results))
	}
	if results[0].AspectRatio != Widescreen.Name {
		t.Errorf("Expected widescreen, got %s", results[0].AspectRatio)
	}
}

func TestRatioFor(t *testing.T) {
	tests := []struct {
		category composition.Category
		expected string
	}{
		{composition.AspectSuggestPortrait, "portrait"},
		{composition.AspectSuggestLandscape, "landscape"},
		{composition.TooSmall, "frame"},
	}

	for _, tt := range tests {
		if got := RatioFor(tt.category, fullHD).Name; got != tt.expected {
			t.Errorf("RatioFor(%s) = %s, expected %s", tt.category, got, tt.expected)
		}
	}
}

func TestApply(t *testing.T) {
	cropper := New()
	img := createTestImage(100, 100)

	out := cropper.Apply(img, Suggestion{Crop: composition.BoundingBox{Left: 10, Top: 20, Right: 60, Bottom: 80}})
	if out.Bounds().Dx() != 50 || out.Bounds().Dy() != 60 {
		t.Errorf("Expected 50x60 crop, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestNearestThird(t *testing.T) {
	if nearestThird(0.1) != 1.0/3.0 || nearestThird(0.9) != 2.0/3.0 {
		t.Error("nearestThird picked the wrong line")
	}
}

func BenchmarkSuggest(b *testing.B) {
	cropper := New()
	box := composition.BoundingBox{Left: 860, Top: 440, Right: 1060, Bottom: 640}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cropper.Suggest(box, fullHD, Widescreen)
	}
}
