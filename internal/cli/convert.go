package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altolabs/clefshift/internal/adapters/midifile"
	"github.com/altolabs/clefshift/internal/adapters/omr"
	"github.com/altolabs/clefshift/internal/adapters/preprocess"
	"github.com/altolabs/clefshift/internal/adapters/render"
	"github.com/altolabs/clefshift/internal/config"
	"github.com/altolabs/clefshift/internal/core/clef"
	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/transpose"
)

// newConvertCmd is the one-shot path: same pipeline as the server, no task
// store, no HTTP, results written next to the current directory.
func newConvertCmd() *cobra.Command {
	var (
		outDir      string
		formats     string
		highQuality bool
	)

	cmd := &cobra.Command{
		Use:   "convert <image>",
		Short: "Convert a single score image locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			options := domain.ConvertOptions{
				HighQuality: highQuality,
				Formats:     strings.Split(formats, ","),
			}
			if err := options.Validate(); err != nil {
				return err
			}
			return runConvert(cmd, settings, args[0], outDir, options)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&formats, "formats", "png", "comma-separated output formats")
	cmd.Flags().BoolVar(&highQuality, "high-quality", false, "apply contrast enhancement before recognition")
	return cmd
}

func runConvert(cmd *cobra.Command, settings config.Settings, imagePath, outDir string, options domain.ConvertOptions) error {
	ctx := cmd.Context()

	workDir, err := os.MkdirTemp("", "clefshift-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	geo := clef.NewGeometry()
	geo.SetMaxLedgerLines(settings.Clef.MaxLedgerLines)
	sourceClef := domain.Clef(settings.Clef.SourceClef)
	targetClef := domain.Clef(settings.Clef.TargetClef)

	enhanced, err := preprocess.NewLocal().Preprocess(ctx, imagePath, workDir, options.HighQuality)
	if err != nil {
		return err
	}
	result, err := omr.NewBasic(geo, sourceClef).Recognize(ctx, enhanced)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recognized %d notes (confidence %.2f)\n", len(result.Notes), result.Confidence)

	converted := result
	if result.Metadata.Clef != targetClef {
		converted, err = transpose.NewEngine(geo).Convert(result, result.Metadata.Clef, targetClef)
		if err != nil {
			return err
		}
	}

	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	renderer := render.NewRenderer(settings.Render.Width, settings.Render.Height)
	midi := midifile.NewWriter()
	for _, format := range options.Formats {
		outPath := filepath.Join(outDir, stem+"_converted."+format)
		switch format {
		case "midi", "mid":
			err = midi.WriteMIDI(ctx, converted, outPath)
		default:
			err = renderer.Render(ctx, converted, outPath, format)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote", outPath)
	}
	return nil
}
