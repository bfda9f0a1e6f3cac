package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/composition-guide/pkg/composition"
	"github.com/menta2k/composition-guide/pkg/types"
)

// Processor handles frame loading, encoding and overlay rendering
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new frame processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// MaxFrameBytes caps the size of a frame downloaded from a URL
const MaxFrameBytes = 32 << 20

// LoadImageFromURL downloads a frame over HTTP(S). Servers that label the
// body generically are accepted when the bytes sniff as an image.
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	// Only plain web URLs are frame sources
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid frame URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Composition-Guide/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download frame: HTTP %d", resp.StatusCode)
	}

	// Read one byte past the cap to detect oversized frames
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFrameBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame data: %w", err)
	}
	if len(data) > MaxFrameBytes {
		return nil, fmt.Errorf("frame larger than %d bytes", MaxFrameBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	return p.decodeImageFromBytes(data)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// imaging.Open also applies EXIF orientation
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// LoadFrame loads a frame from either a file path or URL
func (p *Processor) LoadFrame(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	// Registered decoders first, then the cgo WebP decoder for
	// extended WebP files x/image cannot read
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// FrameDimensions returns the size of img as composition frame dimensions
func (p *Processor) FrameDimensions(img image.Image) composition.FrameDimensions {
	b := img.Bounds()
	return composition.FrameDimensions{Width: b.Dx(), Height: b.Dy()}
}

// MinFrameSize is the smallest frame side ValidateFrame accepts
const MinFrameSize = 32

// ValidateFrame checks that a frame is large enough to analyze
func (p *Processor) ValidateFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() < MinFrameSize || b.Dy() < MinFrameSize {
		return fmt.Errorf("frame too small: %dx%d (minimum: %d)", b.Dx(), b.Dy(), MinFrameSize)
	}
	return nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

var (
	gridColor    = color.NRGBA{255, 255, 255, 128}
	goodColor    = color.NRGBA{0, 255, 0, 255}
	adviceColor  = color.NRGBA{255, 204, 0, 255}
	centerColor  = color.NRGBA{255, 0, 0, 255}
	neutralColor = color.NRGBA{0, 170, 255, 255}
)

// CreateGuideOverlay draws the rule-of-thirds grid over img and, when box is
// set, the subject box colored by category plus a marker at its center.
func (p *Processor) CreateGuideOverlay(img image.Image, box *types.Box, category composition.Category) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	stroke := int(math.Max(2, 0.004*float64(minInt(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(minInt(w, h))))   // ~1% of min side

	// Thirds grid
	for i := 1; i <= 2; i++ {
		x := w * i / 3
		y := h * i / 3
		blendVLine(nrgba, x, 0, h, gridColor)
		blendHLine(nrgba, y, 0, w, gridColor)
	}

	if box == nil {
		return nrgba
	}

	boxColor := adviceColor
	switch category {
	case composition.Optimal:
		boxColor = goodColor
	case composition.NoSubject, composition.SearchingForSubject, composition.Unknown:
		boxColor = neutralColor
	}
	drawBox(nrgba, *box, w, h, boxColor, stroke)

	cx, cy := box.Center()
	px := int(clamp(cx, 0, 1)*float64(w) + 0.5)
	py := int(clamp(cy, 0, 1)*float64(h) + 0.5)
	drawHLine(nrgba, py, px-cross, px+cross, centerColor)
	drawVLine(nrgba, px, py-cross, py+cross, centerColor)

	return nrgba
}

// Helper functions
func clamp(v, lo, hi float64) float64 {
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

func boxToPixels(box types.Box, w, h int) (int, int, int, int) {
	x0 := int(clamp(box.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func drawBox(img *image.NRGBA, box types.Box, w, h int, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(box, w, h)
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

// clipSpan orders and clips [a, b) to [0, limit); ok is false when empty
func clipSpan(a, b, limit int) (int, int, bool) {
	if a > b {
		a, b = b, a
	}
	if b <= 0 || a >= limit {
		return 0, 0, false
	}
	if a < 0 {
		a = 0
	}
	if b > limit {
		b = limit
	}
	return a, b, true
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	x0, x1, ok := clipSpan(x0, x1, img.Bounds().Dx())
	if !ok {
		return
	}
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	y0, y1, ok := clipSpan(y0, y1, img.Bounds().Dy())
	if !ok {
		return
	}
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}

// blend mixes c over the existing pixel using c's alpha
func blend(img *image.NRGBA, x, y int, c color.NRGBA) {
	dst := img.NRGBAAt(x, y)
	a := uint32(c.A)
	mix := func(s, d uint8) uint8 {
		return uint8((uint32(s)*a + uint32(d)*(255-a)) / 255)
	}
	img.SetNRGBA(x, y, color.NRGBA{mix(c.R, dst.R), mix(c.G, dst.G), mix(c.B, dst.B), dst.A})
}

func blendHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	x0, x1, ok := clipSpan(x0, x1, img.Bounds().Dx())
	if !ok {
		return
	}
	for x := x0; x < x1; x++ {
		blend(img, x, y, c)
	}
}

func blendVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	y0, y1, ok := clipSpan(y0, y1, img.Bounds().Dy())
	if !ok {
		return
	}
	for y := y0; y < y1; y++ {
		blend(img, x, y, c)
	}
}
