package composition

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when a box or frame has non-positive dimensions
var ErrInvalidInput = errors.New("composition: invalid input")

// thirdLines are the normalized positions of the rule-of-thirds grid lines
var thirdLines = [2]float64{1.0 / 3.0, 2.0 / 3.0}

// BoundingBox is an axis-aligned rectangle in pixel coordinates
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the horizontal extent of the box
func (b BoundingBox) Width() int {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top
}

// Area returns the area of the box in pixels
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// CenterX returns the horizontal center of the box
func (b BoundingBox) CenterX() float64 {
	return float64(b.Left+b.Right) / 2
}

// CenterY returns the vertical center of the box
func (b BoundingBox) CenterY() float64 {
	return float64(b.Top+b.Bottom) / 2
}

// FrameDimensions holds the size of an analyzed frame in pixels
type FrameDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the area of the frame in pixels
func (f FrameDimensions) Area() int {
	return f.Width * f.Height
}

// Config holds the thresholds used by the evaluator
type Config struct {
	// ThirdsTolerance is the maximum normalized distance from a third line
	// that still counts as being on the grid.
	ThirdsTolerance float64 `json:"thirds_tolerance"`

	// CenterTolerance is the normalized distance from the frame center
	// within which a subject is considered centered.
	CenterTolerance float64 `json:"center_tolerance"`
	MinAreaRatio    float64 `json:"min_area_ratio"`
	MaxAreaRatio    float64 `json:"max_area_ratio"`
	AspectThreshold float64 `json:"aspect_threshold"`
}

// DefaultConfig returns the default evaluator thresholds
func DefaultConfig() Config {
	return Config{
		ThirdsTolerance: 0.15,
		CenterTolerance: 0.1,
		MinAreaRatio:    0.08,
		MaxAreaRatio:    0.75,
		AspectThreshold: 1.4,
	}
}

// Validate checks that all thresholds are in range
func (c Config) Validate() error {
	if c.ThirdsTolerance <= 0 || c.ThirdsTolerance > 0.5 {
		return fmt.Errorf("thirds_tolerance must be in (0, 0.5]")
	}
	if c.CenterTolerance <= 0 || c.CenterTolerance > 0.5 {
		return fmt.Errorf("center_tolerance must be in (0, 0.5]")
	}
	if c.MinAreaRatio < 0 || c.MinAreaRatio > 1 {
		return fmt.Errorf("min_area_ratio must be between 0 and 1")
	}
	if c.MaxAreaRatio <= 0 || c.MaxAreaRatio > 1 {
		return fmt.Errorf("max_area_ratio must be in (0, 1]")
	}
	if c.MinAreaRatio >= c.MaxAreaRatio {
		return fmt.Errorf("min_area_ratio must be less than max_area_ratio")
	}
	if c.AspectThreshold < 1 {
		return fmt.Errorf("aspect_threshold must be at least 1")
	}
	return nil
}

// Metrics are the geometric measurements the cascade is decided on
type Metrics struct {
	CenterX     float64 `json:"cx"`
	CenterY     float64 `json:"cy"`
	ThirdsDistX float64 `json:"thirds_dist_x"`
	ThirdsDistY float64 `json:"thirds_dist_y"`
	AreaRatio   float64 `json:"area_ratio"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// Evaluator scores a subject box against composition heuristics.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	config Config
}

// New creates an Evaluator with default configuration
func New() *Evaluator {
	return &Evaluator{config: DefaultConfig()}
}

// NewWithConfig creates an Evaluator with custom configuration
func NewWithConfig(config Config) *Evaluator {
	return &Evaluator{config: config}
}

// Config returns the thresholds in use
func (e *Evaluator) Config() Config {
	return e.config
}

// Evaluate classifies the composition of box within frame
func (e *Evaluator) Evaluate(box BoundingBox, frame FrameDimensions) (Category, error) {
	_, category, err := e.Analyze(box, frame)
	return category, err
}

// Analyze is Evaluate that also returns the computed metrics
func (e *Evaluator) Analyze(box BoundingBox, frame FrameDimensions) (Metrics, Category, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return Metrics{}, Unknown, fmt.Errorf("%w: frame %dx%d", ErrInvalidInput, frame.Width, frame.Height)
	}
	if box.Width() <= 0 || box.Height() <= 0 {
		return Metrics{}, Unknown, fmt.Errorf("%w: box %dx%d", ErrInvalidInput, box.Width(), box.Height())
	}

	m := measure(box, frame)
	return m, e.classify(box, m), nil
}

// classify runs the ordered cascade; the first matching rule wins
func (e *Evaluator) classify(box BoundingBox, m Metrics) Category {
	c := e.config
	w, h := float64(box.Width()), float64(box.Height())

	switch {
	case m.ThirdsDistX >= c.ThirdsTolerance && m.ThirdsDistY >= c.ThirdsTolerance:
		return RuleOfThirdsViolation
	case math.Abs(m.CenterX-0.5) < c.CenterTolerance && math.Abs(m.CenterY-0.5) < c.CenterTolerance:
		return CenteredSubject
	case m.AreaRatio < c.MinAreaRatio:
		return TooSmall
	case m.AreaRatio > c.MaxAreaRatio:
		return TooLarge
	case h > w*c.AspectThreshold:
		return AspectSuggestPortrait
	case w > h*c.AspectThreshold:
		return AspectSuggestLandscape
	default:
		return Optimal
	}
}

func measure(box BoundingBox, frame FrameDimensions) Metrics {
	cx := box.CenterX() / float64(frame.Width)
	cy := box.CenterY() / float64(frame.Height)
	return Metrics{
		CenterX:     cx,
		CenterY:     cy,
		ThirdsDistX: distanceToThirds(cx),
		ThirdsDistY: distanceToThirds(cy),
		AreaRatio:   float64(box.Area()) / float64(frame.Area()),
		AspectRatio: float64(box.Width()) / float64(box.Height()),
	}
}

// distanceToThirds returns the distance from v to the nearest third line
func distanceToThirds(v float64) float64 {
	return math.Min(math.Abs(v-thirdLines[0]), math.Abs(v-thirdLines[1]))
}

// ForSubjectless returns the category for a frame without a qualifying subject
func ForSubjectless(anyObjects bool) Category {
	if anyObjects {
		return NoSubject
	}
	return SearchingForSubject
}
