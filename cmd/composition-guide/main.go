package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	compositionguide "github.com/menta2k/composition-guide"
	"github.com/menta2k/composition-guide/internal/config"
	"github.com/menta2k/composition-guide/internal/utils"
	"github.com/menta2k/composition-guide/pkg/client"
	"github.com/menta2k/composition-guide/pkg/composition"
	"github.com/menta2k/composition-guide/pkg/cropper"
	"github.com/menta2k/composition-guide/pkg/detection"
	"github.com/menta2k/composition-guide/pkg/guidance"
	"github.com/menta2k/composition-guide/pkg/llamacpp"
	"github.com/menta2k/composition-guide/pkg/ollama"
	"github.com/menta2k/composition-guide/pkg/processing"
	"github.com/menta2k/composition-guide/pkg/vision"
)

// frameRecord is one line of -json output
type frameRecord struct {
	Input   string                       `json:"input"`
	Time    time.Time                    `json:"time"`
	Result  compositionguide.FrameResult `json:"result"`
	Reframe *cropper.Suggestion          `json:"reframe,omitempty"`
}

func main() {
	var in, cfgPath, backend, url, model, locale, outDir, ext string
	var fps float64
	var interval int
	var voice, overlay, reframe, asJSON, skipGated, testVision bool

	flag.StringVar(&in, "in", "", "input frame path, URL, or directory of frames")
	flag.StringVar(&cfgPath, "config", "", "JSON config file (default: built-in defaults)")
	flag.StringVar(&backend, "backend", "", "detector backend: ollama, llamacpp or local")
	flag.StringVar(&url, "url", "", "server URL (defaults: ollama=http://localhost:11435/api/chat, llamacpp=http://localhost:8080)")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&locale, "locale", "", "guidance language: "+strings.Join(composition.Locales(), "|"))
	flag.Float64Var(&fps, "fps", 1, "frame rate used to timestamp frames of a directory")
	flag.IntVar(&interval, "interval", 0, "minimum milliseconds between spoken guidance (0=config)")
	flag.BoolVar(&voice, "voice", false, "speak guidance (logged as say: lines)")
	flag.BoolVar(&skipGated, "skip-gated", false, "do not run detection on frames inside the guidance interval")
	flag.StringVar(&outDir, "out", "", "output directory for overlays and reframes")
	flag.BoolVar(&overlay, "overlay", false, "write a guide overlay per frame")
	flag.BoolVar(&reframe, "reframe", false, "write a suggested thirds-aligned crop per frame")
	flag.StringVar(&ext, "ext", "", "output format: png|jpg|webp")
	flag.BoolVar(&asJSON, "json", false, "print one JSON record per frame to stdout")
	flag.BoolVar(&testVision, "test-vision", false, "ask the model to describe the first frame and exit")
	flag.Parse()

	if in == "" {
		log.Fatalf("usage: %s -in frame.jpg|URL|dir [-backend ollama|llamacpp|local] [-url server_url] [-locale ru|en] [-voice] [-out outdir -overlay -reframe] [-json]", filepath.Base(os.Args[0]))
	}

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	// Flags override the config file only when given
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Detection.Backend = backend
		case "url":
			cfg.Detection.URL = url
		case "model":
			cfg.Detection.Model = model
		case "locale":
			cfg.Guidance.Locale = locale
		case "interval":
			cfg.Guidance.IntervalMs = interval
		case "voice":
			cfg.Guidance.Voice = voice
		case "skip-gated":
			cfg.Guidance.SkipWhileGated = skipGated
		case "out":
			cfg.Output.Dir = outDir
		case "overlay":
			cfg.Output.Overlay = overlay
		case "ext":
			cfg.Output.Format = strings.ToLower(ext)
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if fps <= 0 {
		log.Fatalf("-fps must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	processor := processing.NewProcessor()

	source, model := newSource(cfg.Detection)

	inputs, err := collectInputs(in)
	if err != nil {
		log.Fatal(err)
	}
	if len(inputs) == 0 {
		log.Fatalf("no image files in %s", in)
	}

	if testVision {
		ms, ok := source.(*detection.ModelSource)
		if !ok {
			log.Fatalf("-test-vision needs a model backend")
		}
		img, err := processor.LoadFrame(ctx, inputs[0])
		if err != nil {
			log.Fatal(err)
		}
		reply, err := ms.TestVision(ctx, img)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("model %s sees: %s", model, reply)
		return
	}

	guide := compositionguide.New(source, guideOptions(cfg))

	writeImages := cfg.Output.Overlay || reframe
	if writeImages {
		if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
			log.Fatal(err)
		}
	}

	smartCropper := cropper.NewWithConfig(cropper.DefaultConfig(), composition.NewWithConfig(cfg.Composition))
	enc := json.NewEncoder(os.Stdout)

	start := time.Now()
	step := time.Duration(float64(time.Second) / fps)
	for i, input := range inputs {
		if ctx.Err() != nil {
			log.Printf("interrupted after %d frames", i)
			break
		}

		img, err := processor.LoadFrame(ctx, input)
		if err != nil {
			log.Printf("load %s failed: %v", input, err)
			continue
		}
		if err := processor.ValidateFrame(img); err != nil {
			log.Printf("skip %s: %v", input, err)
			continue
		}

		now := start.Add(time.Duration(i) * step)
		result, err := guide.AnalyzeFrame(ctx, img, now)
		if err != nil {
			log.Printf("analyze %s failed: %v", input, err)
			continue
		}
		logResult(input, result)

		record := frameRecord{Input: input, Time: now, Result: result}
		if reframe && result.Box != nil {
			if s, err := smartCropper.Suggest(*result.Box, result.Frame, cropper.RatioFor(result.Category, result.Frame)); err != nil {
				log.Printf("reframe %s: %v", input, err)
			} else {
				record.Reframe = &s
				save(processor, smartCropper.Apply(img, s), input, cfg.Output, "_reframe")
			}
		}
		if cfg.Output.Overlay {
			save(processor, guide.Overlay(img, result), input, cfg.Output, "_guide")
		}

		if asJSON {
			if err := enc.Encode(record); err != nil {
				log.Printf("json output failed: %v", err)
			}
		}
	}
}

// guideOptions maps the configuration onto Guide options
func guideOptions(cfg *config.Config) compositionguide.Options {
	opts := compositionguide.DefaultOptions()
	opts.Composition = cfg.Composition
	opts.Selector = detection.SubjectSelector{Labels: cfg.Detection.Labels(), MinConfidence: cfg.Detection.MinConfidence}
	opts.Interval = cfg.Guidance.Interval()
	opts.Locale = cfg.Guidance.Locale
	opts.Voice = cfg.Guidance.Voice
	opts.SkipWhileGated = cfg.Guidance.SkipWhileGated
	if cfg.Guidance.Voice {
		opts.Speaker = guidance.NewLogSpeaker(log.Default())
	}
	return opts
}

// newSource builds the detector for the configured backend and returns the
// model name it uses
func newSource(cfg config.DetectionConfig) (detection.Source, string) {
	var visionClient client.VisionClient
	var err error

	url := cfg.URL
	switch cfg.Backend {
	case "local":
		return vision.New(), vision.SalientLabel
	case "ollama":
		if url == "" {
			url = "http://localhost:11435/api/chat"
		}
		visionClient, err = ollama.NewClient(url)
		if err != nil {
			log.Fatalf("Failed to create Ollama client: %v", err)
		}
	case "llamacpp":
		if url == "" {
			url = llamacpp.DefaultURL
		}
		visionClient, err = llamacpp.NewClient(url)
		if err != nil {
			log.Fatalf("Failed to create llama.cpp client: %v", err)
		}
	default:
		log.Fatalf("Unknown backend: %s (use 'ollama', 'llamacpp' or 'local')", cfg.Backend)
	}

	encode := detection.EncodeOptions{Format: cfg.SendFormat, MaxDim: cfg.SendSize, Quality: cfg.SendQuality}
	return detection.NewModelSource(visionClient, cfg.Model, encode), cfg.Model
}

// collectInputs expands a directory into its frames in lexical order
func collectInputs(in string) ([]string, error) {
	if utils.DirExists(in) {
		return utils.ListImageFiles(in)
	}
	return []string{in}, nil
}

func logResult(input string, r compositionguide.FrameResult) {
	name := filepath.Base(input)
	switch {
	case r.Skipped:
		log.Printf("%s: skipped (%s)", name, r.SkipReason)
	case r.Subject != nil:
		log.Printf("%s: %s subject=%q conf=%.2f box=%dx%d@%d,%d -> %s",
			name, r.Category, r.Subject.Label, r.Subject.Confidence,
			r.Box.Width(), r.Box.Height(), r.Box.Left, r.Box.Top, r.Message)
	default:
		log.Printf("%s: %s (%d objects) -> %s", name, r.Category, r.Objects, r.Message)
	}
}

func save(p *processing.Processor, img image.Image, input string, out config.OutputConfig, suffix string) {
	path := utils.GenerateOutputFilename(input, out.Dir, "", suffix, out.Format)
	if err := p.SaveImage(img, path, out.Format, out.Quality, out.Lossless); err != nil {
		log.Printf("save %s failed: %v", path, err)
		return
	}
	log.Printf("wrote %s", path)
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s (v%s):\n", filepath.Base(os.Args[0]), compositionguide.GetVersion())
		flag.PrintDefaults()
	}
}
