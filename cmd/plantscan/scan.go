package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/internal/strategy"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/services"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

type scanFlags struct {
	preset      string
	sensitivity int
	tuned       bool
	language    string
	overlayPath string
}

func newScanCmd() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan a leaf photo and print the detections as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.tuned = cmd.Flags().Changed("sensitivity")
			resp, err := scanFile(args[0], f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&f.preset, "preset", "photo", "scan preset: live or photo")
	cmd.Flags().IntVar(&f.sensitivity, "sensitivity", analyzer.DefaultSensitivity, "sensitivity 0..100; switches the live preset to scaled thresholds")
	cmd.Flags().StringVar(&f.language, "lang", "en", "label language: en, kn or hi")
	cmd.Flags().StringVarP(&f.overlayPath, "overlay", "o", "", "write the photo with the overlay drawn on it to this PNG file")
	return cmd
}

func scanFile(path string, f scanFlags) (*models.ScanResponse, error) {
	start := time.Now()
	if f.sensitivity < 0 || f.sensitivity > 100 {
		return nil, fmt.Errorf("sensitivity must be within 0..100 (got %d)", f.sensitivity)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fetched, err := storage.DecodeBytes(data)
	if err != nil {
		return nil, err
	}

	registry := strategy.NewRegistry(analyzer.NewColorAnalyzer(nil), analyzer.NewMetricsCalculator(), validation.NewFrameValidator())
	strat, err := registry.ForPreset(f.preset)
	if err != nil {
		return nil, err
	}
	opts := strat.Options().WithLanguage(f.language)
	if f.tuned || opts.Profile == analyzer.ProfileScaled {
		opts = opts.Tune(f.sensitivity)
	}
	res := strat.Scan(fetched.Image, opts)

	size := fetched.Image.Bounds().Size()
	if f.overlayPath != "" {
		if err := writeOverlay(f.overlayPath, fetched, strat.RenderOptions(), res.Detections); err != nil {
			return nil, err
		}
	}

	return &models.ScanResponse{
		ImageURL:          path,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Width:             size.X,
		Height:            size.Y,
		Detections:        res.Detections,
		Summary:           services.Summarize(res.Detections, size),
		Metrics:           res.Metrics,
		Warnings:          validation.Messages(res.Issues),
	}, nil
}

func writeOverlay(path string, fetched *storage.FetchedImage, opts overlay.Options, dets []models.Detection) error {
	canvas := overlay.NewCanvas()
	overlay.NewRenderer(opts).Render(canvas, dets, fetched.Image.Bounds().Size())

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, overlay.Composite(fetched.Image, canvas)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
