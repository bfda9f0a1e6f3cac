// Package compositionguide turns subject detections into photo composition guidance.
//
// A Guide runs one frame at a time through three stages:
//
//  1. Detection (pkg/detection): a Source reports the classified objects in the
//     frame and a SubjectSelector picks the primary subject.
//  2. Evaluation (pkg/composition): the subject's bounding box is checked against
//     rule-of-thirds, centering, size and orientation heuristics. The first rule
//     that matches decides the guidance category.
//  3. Presentation (pkg/guidance): the category is rendered as a localized
//     message and, when voice guidance is on, spoken through a rate-limited gate.
//
// Basic usage:
//
//	source := vision.New() // or detection.NewModelSource(client, model, opts)
//	guide := compositionguide.New(source, compositionguide.DefaultOptions())
//
//	img, _ := processing.NewProcessor().LoadImage("frame.jpg")
//	result, err := guide.AnalyzeFrame(ctx, img, time.Now())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Category, result.Message)
//
// Frames of one capture session should be passed in capture order so that the
// guidance matches what the user currently sees.
package compositionguide

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/menta2k/composition-guide/pkg/composition"
	"github.com/menta2k/composition-guide/pkg/detection"
	"github.com/menta2k/composition-guide/pkg/guidance"
	"github.com/menta2k/composition-guide/pkg/processing"
	"github.com/menta2k/composition-guide/pkg/types"
)

// Version of the composition guide library
const Version = "1.0.0"

// Skip reasons reported in FrameResult
const (
	SkipGated    = "gated"
	SkipGeometry = "invalid geometry"
)

// Options configure a Guide
type Options struct {
	Composition composition.Config
	Selector    detection.SubjectSelector
	Interval    time.Duration
	Locale      string
	Voice       bool

	// Speaker receives spoken guidance; nil disables speech entirely.
	Speaker guidance.Speaker

	// SkipWhileGated drops frames that arrive before the interval since the
	// last produced guidance has elapsed, without running detection.
	SkipWhileGated bool
}

// DefaultOptions returns the default Guide options
func DefaultOptions() Options {
	return Options{
		Composition: composition.DefaultConfig(),
		Selector:    detection.DefaultSubjectSelector(),
		Interval:    guidance.DefaultInterval,
		Locale:      composition.DefaultLocale,
		Voice:       true,
	}
}

// Guide produces composition guidance for a stream of frames
type Guide struct {
	source    detection.Source
	selector  detection.SubjectSelector
	evaluator *composition.Evaluator
	announcer *guidance.Announcer
	frameGate *guidance.Gate
	processor *processing.Processor
}

// New creates a Guide reading detections from source
func New(source detection.Source, opts Options) *Guide {
	g := &Guide{
		source:    source,
		selector:  opts.Selector,
		evaluator: composition.NewWithConfig(opts.Composition),
		announcer: guidance.NewAnnouncer(guidance.NewGate(opts.Interval, opts.Voice), opts.Speaker, opts.Locale),
		processor: processing.NewProcessor(),
	}
	if opts.SkipWhileGated {
		g.frameGate = guidance.NewGate(opts.Interval, true)
	}
	return g
}

// FrameResult is the outcome of analyzing one frame
type FrameResult struct {
	Frame    composition.FrameDimensions `json:"frame"`
	Objects  int                         `json:"objects"`
	Subject  *types.Object               `json:"subject,omitempty"`
	Box      *composition.BoundingBox    `json:"box,omitempty"`
	Metrics  *composition.Metrics        `json:"metrics,omitempty"`
	Category composition.Category        `json:"category"`
	Message  string                      `json:"message,omitempty"`
	Spoken   bool                        `json:"spoken"`

	// Skipped is set when the frame produced no guidance; SkipReason says why.
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// AnalyzeFrame detects the subject in img and produces guidance for it.
// now is the capture time of the frame and drives the rate limit gates.
func (g *Guide) AnalyzeFrame(ctx context.Context, img image.Image, now time.Time) (FrameResult, error) {
	frame := g.processor.FrameDimensions(img)
	result := FrameResult{Frame: frame}

	if g.frameGate != nil && !g.frameGate.Ready(now) {
		result.Skipped = true
		result.SkipReason = SkipGated
		return result, nil
	}

	detected, err := g.source.Detect(ctx, img)
	if err != nil {
		return result, fmt.Errorf("subject detection failed: %w", err)
	}
	if detected == nil {
		detected = &types.DetectionResult{}
	}
	result.Objects = len(detected.Objects)

	category, err := g.classify(detected.Objects, frame, &result)
	if errors.Is(err, composition.ErrInvalidInput) {
		result.Skipped = true
		result.SkipReason = SkipGeometry
		return result, nil
	}
	if err != nil {
		return result, err
	}

	if g.frameGate != nil {
		g.frameGate.ShouldEmit(now)
	}

	ann, err := g.announcer.Announce(ctx, now, category)
	result.Category = ann.Category
	result.Message = ann.Message
	result.Spoken = ann.Spoken
	if err != nil {
		return result, err
	}
	return result, nil
}

func (g *Guide) classify(objects []types.Object, frame composition.FrameDimensions, result *FrameResult) (composition.Category, error) {
	subject, ok := g.selector.Select(objects)
	if !ok {
		return composition.ForSubjectless(len(objects) > 0), nil
	}
	result.Subject = &subject

	box := detection.ToBoundingBox(subject.Box, frame)
	result.Box = &box

	metrics, category, err := g.evaluator.Analyze(box, frame)
	if err != nil {
		return composition.Unknown, err
	}
	result.Metrics = &metrics
	return category, nil
}

// Overlay renders the thirds grid and the result's subject over img
func (g *Guide) Overlay(img image.Image, result FrameResult) image.Image {
	var box *types.Box
	if result.Subject != nil {
		box = &result.Subject.Box
	}
	return g.processor.CreateGuideOverlay(img, box, result.Category)
}

// SetVoice turns spoken guidance on or off
func (g *Guide) SetVoice(enabled bool) {
	g.announcer.Gate().SetEnabled(enabled)
}

// ToggleVoice flips spoken guidance and returns the new state
func (g *Guide) ToggleVoice() bool {
	return g.announcer.Gate().Toggle()
}

// VoiceEnabled reports whether spoken guidance is on
func (g *Guide) VoiceEnabled() bool {
	return g.announcer.Gate().Enabled()
}

// Reset starts a new capture session, re-arming every gate
func (g *Guide) Reset() {
	g.announcer.Gate().Reset()
	if g.frameGate != nil {
		g.frameGate.Reset()
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
