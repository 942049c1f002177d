package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brconsult/fichevisite/internal/codec"
	"github.com/brconsult/fichevisite/internal/domain"
	"github.com/brconsult/fichevisite/internal/render"
)

var (
	renderOut        string
	renderWKHTMLPath string
	renderCatalog    string
	renderLogo       string
	renderClientName bool
	renderTimeout    time.Duration
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <fiche.json>",
	Short: "Render a saved fiche document to PDF",
	Long: `Render loads a saved fiche JSON document, composes the report HTML
and converts it to PDF through wkhtmltopdf.

Example:
  fichevisite render visite_chantier_20250316_143000.json
  fichevisite render fiche.json --out rapport.pdf --logo logo.png --client-name`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderOut, "out", "", "output PDF path (default: fiche_visite_chantier_<date>.pdf)")
	renderCmd.Flags().StringVar(&renderWKHTMLPath, "wkhtmltopdf", "", "path to the wkhtmltopdf binary (default: auto-discover)")
	renderCmd.Flags().StringVar(&renderCatalog, "catalog", "", "YAML criteria catalog override")
	renderCmd.Flags().StringVar(&renderLogo, "logo", "", "logo image embedded in the report header")
	renderCmd.Flags().BoolVar(&renderClientName, "client-name", false, "use the client report layout (client-name row, logo header)")
	renderCmd.Flags().DurationVar(&renderTimeout, "timeout", 2*time.Minute, "PDF conversion timeout")
}

func runRender(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	catalog, err := loadCatalog(renderCatalog)
	if err != nil {
		return err
	}

	report, err := decodeFiche(args[0], catalog)
	if err != nil {
		return err
	}

	composer, err := newComposer(renderLogo, renderClientName, catalog, logger)
	if err != nil {
		return err
	}

	converter, err := render.NewWKHTMLToPDFConverter(renderWKHTMLPath, logger)
	if err != nil {
		return err
	}

	scores := domain.ComputeScores(report, catalog)
	html, err := composer.Compose(report, scores)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), renderTimeout)
	defer cancel()

	var pdf bytes.Buffer
	if err := converter.Convert(ctx, html, &pdf); err != nil {
		return fmt.Errorf("PDF conversion failed: %w", err)
	}

	out := renderOut
	if out == "" {
		out = codec.PDFFilename(report.VisitDate)
	}
	if err := os.WriteFile(out, pdf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Printf("PDF written to %s (%d bytes)\n", out, pdf.Len())
	return nil
}

func decodeFiche(path string, catalog *domain.Catalog) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	report, err := codec.Decode(data, catalog)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return report, nil
}
