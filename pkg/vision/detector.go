package vision

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/composition-guide/pkg/types"
)

// SalientLabel is the label given to every region this detector reports
const SalientLabel = "salient"

// SubjectDetector finds visually dominant regions without a model server
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	MinSubjectRatio float64

	// AnalysisSize is the long side frames are scaled to before analysis.
	AnalysisSize int
	MaxRegions   int

	// OverlapLimit drops regions whose IoU with a stronger one exceeds it.
	OverlapLimit float64
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{
		config: DetectionConfig{
			EdgeThreshold:   0.01,
			ContrastWeight:  0.6,
			ColorWeight:     0.4,
			MinSubjectRatio: 0.02,
			AnalysisSize:    256,
			MaxRegions:      5,
			OverlapLimit:    0.3,
		},
	}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	return &SubjectDetector{config: config}
}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// IoU returns the intersection over union of two regions
func (r Region) IoU(o Region) float64 {
	ix := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).
		Intersect(image.Rect(o.X, o.Y, o.X+o.Width, o.Y+o.Height))
	if ix.Empty() {
		return 0
	}
	inter := ix.Dx() * ix.Dy()
	return float64(inter) / float64(r.Area()+o.Area()-inter)
}

// Detect implements detection.Source. Region scores are reported relative
// to the strongest region, which always has confidence 1.
func (d *SubjectDetector) Detect(ctx context.Context, img image.Image) (*types.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	small := d.downscale(img)
	regions, err := d.DetectSubjects(small)
	if err != nil {
		return nil, err
	}

	result := &types.DetectionResult{Objects: make([]types.Object, 0, len(regions))}
	if len(regions) == 0 {
		result.Description = "no salient region"
		return result, nil
	}

	w := float64(small.Bounds().Dx())
	h := float64(small.Bounds().Dy())
	top := regions[0].Score
	for _, r := range regions {
		result.Objects = append(result.Objects, types.Object{
			Label:      SalientLabel,
			Confidence: r.Score / top,
			Box: types.Box{
				X: float64(r.X) / w,
				Y: float64(r.Y) / h,
				W: float64(r.Width) / w,
				H: float64(r.Height) / h,
			},
		})
	}
	result.Description = "salient regions by edge contrast"
	result.Tags = []string{SalientLabel}
	return result, nil
}

func (d *SubjectDetector) downscale(img image.Image) image.Image {
	size := d.config.AnalysisSize
	b := img.Bounds()
	if size <= 0 || (b.Dx() <= size && b.Dy() <= size) {
		return img
	}
	if b.Dx() >= b.Dy() {
		return imaging.Resize(img, size, 0, imaging.Box)
	}
	return imaging.Resize(img, 0, size, imaging.Box)
}

// DetectSubjects analyzes an image and returns regions of interest, strongest first
func (d *SubjectDetector) DetectSubjects(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := d.calculateSaliencyMap(img)
	regions := d.findImportantRegions(saliencyMap, width, height)
	filtered := d.filterAndScoreRegions(regions, width, height)

	return d.suppressOverlaps(filtered), nil
}

func (d *SubjectDetector) calculateSaliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := make([][]float64, height)
	for i := range saliencyMap {
		saliencyMap[i] = make([]float64, width)
	}

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var edgeStrength float64
			for _, offset := range neighbors {
				nx, ny := x+offset[0], y+offset[1]
				r2, g2, b2, _ := img.At(nx+bounds.Min.X, ny+bounds.Min.Y).RGBA()

				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edgeStrength += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edgeStrength /= 8.0 * 65535.0

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)

			saliencyMap[y][x] = d.config.ContrastWeight*edgeStrength + d.config.ColorWeight*brightness
		}
	}

	return saliencyMap
}

func (d *SubjectDetector) findImportantRegions(saliencyMap [][]float64, width, height int) []Region {
	var regions []Region

	windowSizes := []int{width / 12, width / 8, width / 6, width / 4, width / 3}

	for _, windowSize := range windowSizes {
		if windowSize < 10 || windowSize > height {
			continue
		}
		step := windowSize / 4

		for y := 0; y <= height-windowSize; y += step {
			for x := 0; x <= width-windowSize; x += step {
				score := calculateRegionScore(saliencyMap, x, y, windowSize, windowSize)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{
						X:      x,
						Y:      y,
						Width:  windowSize,
						Height: windowSize,
						Score:  score,
					})
				}
			}
		}
	}

	return regions
}

func calculateRegionScore(saliencyMap [][]float64, x, y, width, height int) float64 {
	var totalScore float64
	count := 0

	for ry := y; ry < y+height && ry < len(saliencyMap); ry++ {
		for rx := x; rx < x+width && rx < len(saliencyMap[ry]); rx++ {
			totalScore += saliencyMap[ry][rx]
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return totalScore / float64(count)
}

func (d *SubjectDetector) filterAndScoreRegions(regions []Region, imageWidth, imageHeight int) []Region {
	minArea := int(float64(imageWidth*imageHeight) * d.config.MinSubjectRatio)

	filtered := make([]Region, 0, len(regions))
	for _, region := range regions {
		if region.Area() >= minArea {
			filtered = append(filtered, region)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}

// suppressOverlaps keeps the strongest region of every overlapping cluster
func (d *SubjectDetector) suppressOverlaps(sorted []Region) []Region {
	var kept []Region
	for _, r := range sorted {
		if d.config.MaxRegions > 0 && len(kept) >= d.config.MaxRegions {
			break
		}
		overlaps := false
		for _, k := range kept {
			if r.IoU(k) > d.config.OverlapLimit {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, r)
		}
	}
	return kept
}
