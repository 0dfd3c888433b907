package commands

import (
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/argus-vision/go-detect/detections"
	"github.com/argus-vision/go-detect/inference"
	"github.com/argus-vision/go-detect/render"
	"github.com/argus-vision/go-detect/util"
)

// NewRunCmd creates the run command, the end-to-end detection entry
// point: fetch the model, run inference on one image or a directory of
// images, write annotated copies and optionally a detection report.
func NewRunCmd() *cobra.Command {
	var (
		imagePath    string
		dirPath      string
		outputPath   string
		modelURL     string
		reportFormat string
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect objects in images and write annotated copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (imagePath == "") == (dirPath == "") {
				return errors.New("exactly one of --image or --dir is required")
			}

			cfg, log, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			if modelURL != "" {
				cfg.Model.URL = modelURL
			}
			if cfg.Model.URL == "" {
				return errors.New("model URL required (--model, config file or GODETECT_MODEL_URL)")
			}

			ctx := cmd.Context()
			fc, err := newFetchClient(cfg, log)
			if err != nil {
				return err
			}
			modelPath, err := fc.Fetch(ctx, cfg.Model.URL)
			if err != nil {
				return errors.Wrap(err, "fetch model")
			}
			labels, err := resolveLabels(ctx, cfg, fc)
			if err != nil {
				return errors.Wrap(err, "resolve labels")
			}

			engine, err := inference.NewRuntime(inference.RuntimeConfig{
				ModelPath:      modelPath,
				LibraryPath:    cfg.Model.LibraryPath,
				IntraOpThreads: cfg.Model.IntraOpThreads,
				InterOpThreads: cfg.Model.InterOpThreads,
				Provider:       inference.Provider(cfg.Model.Provider),
				DeviceID:       cfg.Model.DeviceID,
			})
			if err != nil {
				return errors.Wrap(err, "open model")
			}
			defer engine.Close()

			annotator := render.NewAnnotator(render.Options{
				CanvasSize:  cfg.Model.CanvasSize,
				StrokeWidth: cfg.Render.StrokeWidth,
			})
			pipeline, err := inference.NewPipeline(engine, labels, inference.PipelineOptions{
				CanvasSize: cfg.Model.CanvasSize,
				Annotator:  annotator,
				Logger:     &log,
			})
			if err != nil {
				return err
			}

			if imagePath != "" {
				return runSingle(ctx, pipeline, imagePath, outputPath, reportFormat, log)
			}
			return runBatch(ctx, pipeline, dirPath, outputPath, reportFormat, workers, log)
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "image file to process")
	cmd.Flags().StringVar(&dirPath, "dir", "", "directory of images to process")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "annotated output file (single) or directory (batch)")
	cmd.Flags().StringVarP(&modelURL, "model", "m", "", "model artifact URL, overrides the configured one")
	cmd.Flags().StringVar(&reportFormat, "report", "", "write detections to stdout: json or yaml")
	cmd.Flags().IntVar(&workers, "workers", 2, "concurrent images in batch mode")
	return cmd
}

func runSingle(ctx context.Context, p *inference.Pipeline, imagePath, outputPath, reportFormat string, log zerolog.Logger) error {
	img, err := util.LoadImage(imagePath)
	if err != nil {
		return err
	}
	res, err := p.Detect(ctx, img)
	if err != nil {
		return err
	}
	log.Info().Str("image", imagePath).Int("detections", len(res.Detections)).Msg("detection complete")

	if outputPath == "" {
		outputPath = annotatedName(imagePath)
	}
	if err := writeImage(outputPath, res.Annotated); err != nil {
		return err
	}
	return writeReport(os.Stdout, reportFormat, map[string][]detections.Detection{
		imagePath: res.Detections,
	})
}

func runBatch(ctx context.Context, p *inference.Pipeline, dirPath, outputPath, reportFormat string, workers int, log zerolog.Logger) error {
	files, err := util.LoadDirectoryImages(dirPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images in %s", dirPath)
	}

	imgs := make([]image.Image, len(files))
	for i, f := range files {
		imgs[i] = f.Image
	}
	results, err := p.DetectBatch(ctx, imgs, workers)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = filepath.Join(dirPath, "annotated")
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", outputPath)
	}

	report := make(map[string][]detections.Detection, len(results))
	for i, res := range results {
		dst := filepath.Join(outputPath, annotatedName(filepath.Base(files[i].Path)))
		if err := writeImage(dst, res.Annotated); err != nil {
			return err
		}
		report[files[i].Path] = res.Detections
	}
	log.Info().Int("images", len(results)).Str("output", outputPath).Msg("batch complete")
	return writeReport(os.Stdout, reportFormat, report)
}

// annotatedName swaps the extension for an ".annotated.png" suffix, so
// street.jpg becomes street.annotated.png.
func annotatedName(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".annotated.png"
}

// writeImage encodes by extension: .jpg and .jpeg as JPEG, everything
// else as PNG.
func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return errors.Wrap(jpeg.Encode(f, img, &jpeg.Options{Quality: 90}), "encode jpeg")
	default:
		return errors.Wrap(png.Encode(f, img), "encode png")
	}
}

// writeReport dumps detections keyed by source path. An empty format
// skips the report entirely.
func writeReport(w io.Writer, format string, report map[string][]detections.Detection) error {
	switch strings.ToLower(format) {
	case "":
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(report), "encode report")
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "encode report")
		}
		return errors.Wrap(enc.Close(), "finish report")
	default:
		return errors.Errorf("unknown report format %q", format)
	}
}
