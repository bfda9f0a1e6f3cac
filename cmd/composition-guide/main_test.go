package main

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	compositionguide "github.com/menta2k/composition-guide"
	"github.com/menta2k/composition-guide/internal/config"
	"github.com/menta2k/composition-guide/pkg/composition"
	"github.com/menta2k/composition-guide/pkg/detection"
	"github.com/menta2k/composition-guide/pkg/vision"
)

// createTestImage creates a gradient frame with one bright block
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/4 && x < width/2 && y > height/4 && y < 3*height/4 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{uint8((x * 128) / width), uint8((y * 128) / height), 64, 255})
			}
		}
	}
	return img
}

func TestLocalBackendSelectsSubject(t *testing.T) {
	cfg := config.Default()
	cfg.Detection.Backend = "local"
	cfg.Guidance.Voice = false

	source, _ := newSource(cfg.Detection)
	if _, ok := source.(*vision.SubjectDetector); !ok {
		t.Fatalf("Expected the local saliency detector, got %T", source)
	}

	guide := compositionguide.New(source, guideOptions(cfg))
	result, err := guide.AnalyzeFrame(context.Background(), createTestImage(800, 600), time.Now())
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Objects == 0 {
		t.Fatal("Expected salient regions")
	}
	if result.Subject == nil {
		t.Errorf("Expected a subject, got category %s", result.Category)
	}
	if result.Category == composition.NoSubject {
		t.Error("Local backend should not report no_subject for salient frames")
	}
}

func TestModelBackendSelectsPeople(t *testing.T) {
	cfg := config.Default()

	opts := guideOptions(cfg)
	if len(opts.Selector.Labels) != 1 || opts.Selector.Labels[0] != "person" {
		t.Errorf("Expected person label, got %v", opts.Selector.Labels)
	}
	if _, ok := mustSource(t, cfg).(*detection.ModelSource); !ok {
		t.Error("Expected a model source for the default backend")
	}
}

func TestExplicitLabelsOverrideLocalDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Detection.Backend = "local"
	cfg.Detection.SubjectLabels = []string{"dog"}

	if got := guideOptions(cfg).Selector.Labels; len(got) != 1 || got[0] != "dog" {
		t.Errorf("Expected configured labels, got %v", got)
	}
}

func mustSource(t *testing.T, cfg *config.Config) detection.Source {
	t.Helper()
	source, _ := newSource(cfg.Detection)
	return source
}
