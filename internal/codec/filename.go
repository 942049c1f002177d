package codec

import "time"

// SaveFilename returns the download name for a JSON export, suffixed with
// the save timestamp: visite_chantier_20250316_142705.json.
func SaveFilename(now time.Time) string {
	return "visite_chantier_" + now.Format("20060102_150405") + ".json"
}

// PDFFilename returns the download name for a PDF export, suffixed with the
// visit date: fiche_visite_chantier_16-03-2025.pdf.
func PDFFilename(visitDate time.Time) string {
	return "fiche_visite_chantier_" + visitDate.Format("02-01-2006") + ".pdf"
}
