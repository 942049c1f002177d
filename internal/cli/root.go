// Package cli wires the fichevisite commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fichevisite",
	Short: "Fiche de visite chantier - inspection report pipeline",
	Long: `Fichevisite builds construction site visit reports for BR CONSULT.

It rates site criteria on a four-level scale, computes weighted category
and overall scores, persists fiches as portable JSON documents, and
renders print-ready PDF reports through wkhtmltopdf.

The serve command runs the HTTP editing API; render and score work
offline on saved fiche documents.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fichevisite v1.0.0")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
