package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brconsult/fichevisite/internal/domain"
)

var scoreCatalog string

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <fiche.json>",
	Short: "Print the weighted scores of a saved fiche",
	Long: `Score loads a saved fiche JSON document and prints the per-category
percentages and the weighted overall score.

Example:
  fichevisite score visite_chantier_20250316_143000.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreCatalog, "catalog", "", "YAML criteria catalog override")
}

func runScore(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog(scoreCatalog)
	if err != nil {
		return err
	}

	report, err := decodeFiche(args[0], catalog)
	if err != nil {
		return err
	}

	scores := domain.ComputeScores(report, catalog)

	fmt.Printf("Fiche du %s - %s\n\n", report.VisitDate.Format("02/01/2006"), report.Address)
	for _, cs := range scores.Categories {
		fmt.Printf("  %-30s %s\n", cs.Category.String(), cs.Display())
	}
	fmt.Printf("\n  Note globale du chantier : %s\n", scores.OverallDisplay())
	return nil
}
