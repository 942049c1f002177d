package compose

import (
	"bytes"
	"encoding/base64"
	"html"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brconsult/fichevisite/internal/domain"
)

func testReport(catalog *domain.Catalog) *domain.Report {
	r := domain.NewReport(catalog)
	r.VisitDate = time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	r.VisitTime = "08:30"
	r.ClientName = "SCI Les Tilleuls"
	r.Address = "12 rue des Lilas, Lyon"
	r.Headcount = 6
	r.Supervisor = "A. Martin"
	r.Foreman = "B. Dupont"
	r.SiteContact = "C. Bernard"
	r.Author = "D. Petit"
	r.WorkTypes = []string{"Ravalement", "Étanchéité"}
	r.WorkTypesOther = "Nettoyage cryogénique"
	r.SetRating(domain.CategorySecurite, "Risques de chute", domain.RatingPartiallySatisfactory)
	r.SetObservation(domain.CategorySecurite, "Risques de chute", "garde-corps manquant au second niveau")
	r.SetRating(domain.CategorySecurite, "Port des EPI et vêtements de travail classiques", domain.RatingSatisfactory)
	r.SetRating(domain.CategoryEnvironnement, "Gestion des déchets", domain.RatingNotSatisfactory)
	return r
}

func compose(t *testing.T, opts Options, r *domain.Report, catalog *domain.Catalog) string {
	t.Helper()
	c, err := New(opts, catalog, nil)
	require.NoError(t, err)
	html, err := c.Compose(r, domain.ComputeScores(r, catalog))
	require.NoError(t, err)
	return string(html)
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestCompose_GeneralInformation(t *testing.T) {
	catalog := domain.DefaultCatalog()
	html := compose(t, Options{}, testReport(catalog), catalog)

	assert.Contains(t, html, "FICHE DE VISITE CHANTIER")
	assert.Contains(t, html, "16/03/2025")
	assert.Contains(t, html, "08:30")
	assert.Contains(t, html, "12 rue des Lilas, Lyon")
	assert.Contains(t, html, "6 personnes")
	assert.Contains(t, html, "A. Martin")
	assert.Contains(t, html, "D. Petit")

	// Default variant leaves the client out entirely.
	assert.NotContains(t, html, "Nom du client")
	assert.NotContains(t, html, "SCI Les Tilleuls")
}

func TestCompose_ClientVariant(t *testing.T) {
	catalog := domain.DefaultCatalog()
	logo := jpegBytes(t, 60, 60)
	html := compose(t, Options{IncludeClientName: true, Logo: logo}, testReport(catalog), catalog)

	assert.Contains(t, html, "RAPPORT DE VISITE CHANTIER")
	assert.Contains(t, html, "Nom du client")
	assert.Contains(t, html, "SCI Les Tilleuls")
	assert.Contains(t, html, `class="logo-container"`)
	assert.Contains(t, html, "data:image/jpeg;base64,")
}

func TestCompose_OptionalSectionsOmittedWhenBlank(t *testing.T) {
	catalog := domain.DefaultCatalog()
	r := testReport(catalog)
	r.VisitTheme = ""
	r.GeneralEvaluation = ""
	r.PhotoLink = ""

	html := compose(t, Options{}, r, catalog)
	assert.NotContains(t, html, "Thème de la Visite")
	assert.NotContains(t, html, "Évaluation Générale")
	assert.NotContains(t, html, "Photos du Chantier")

	r.VisitTheme = "Travaux en hauteur"
	r.GeneralEvaluation = "Chantier bien tenu."
	r.PhotoLink = "https://www.dropbox.com/sh/abc123"
	html = compose(t, Options{}, r, catalog)
	assert.Contains(t, html, "Thème de la Visite")
	assert.Contains(t, html, "Travaux en hauteur")
	assert.Contains(t, html, "Évaluation Générale")
	assert.Contains(t, html, "Photos du Chantier")
	assert.Contains(t, html, "https://www.dropbox.com/sh/abc123")
}

func TestCompose_WorkTags(t *testing.T) {
	catalog := domain.DefaultCatalog()
	html := compose(t, Options{}, testReport(catalog), catalog)

	assert.Contains(t, html, `<span class="work-tag">Ravalement</span>`)
	assert.Contains(t, html, `<span class="work-tag">Étanchéité</span>`)
	// Free-text entry renders as one more tag.
	assert.Contains(t, html, `<span class="work-tag">Nettoyage cryogénique</span>`)
}

func TestCompose_StatusBadges(t *testing.T) {
	catalog := domain.DefaultCatalog()
	html := compose(t, Options{}, testReport(catalog), catalog)

	assert.Contains(t, html, `status status-satisfaisant">Satisfaisant<`)
	assert.Contains(t, html, `status status-partiellement">Partiellement Satisfaisant<`)
	assert.Contains(t, html, `status status-non-satisfaisant">Non Satisfaisant<`)
	assert.Contains(t, html, `status status-na">Non Applicable<`)
}

func TestCompose_ScoresComeFromSummary(t *testing.T) {
	catalog := domain.DefaultCatalog()
	r := testReport(catalog)
	scores := domain.ComputeScores(r, catalog)

	c, err := New(Options{}, catalog, nil)
	require.NoError(t, err)
	html, err := c.Compose(r, scores)
	require.NoError(t, err)

	for _, cs := range scores.Categories {
		assert.Contains(t, string(html), cs.Display())
	}
	assert.Contains(t, string(html), scores.OverallDisplay())
}

func TestCompose_EmptyObservationRendersDash(t *testing.T) {
	catalog := domain.DefaultCatalog()
	html := compose(t, Options{}, testReport(catalog), catalog)
	assert.Contains(t, html, `<span class="observation">-</span>`)
	assert.Contains(t, html, "garde-corps manquant au second niveau")
}

func TestCompose_Attachment(t *testing.T) {
	catalog := domain.DefaultCatalog()

	t.Run("none", func(t *testing.T) {
		html := compose(t, Options{}, testReport(catalog), catalog)
		assert.Contains(t, html, "Aucune feuille d'émargement ajoutée")
	})

	t.Run("pdf placeholder", func(t *testing.T) {
		r := testReport(catalog)
		r.Attachment = &domain.Attachment{
			Data:        []byte("%PDF-1.4"),
			ContentType: "application/pdf",
			Filename:    "emargement.pdf",
		}
		html := compose(t, Options{}, r, catalog)
		assert.Contains(t, html, "Un fichier PDF a été joint comme feuille d'émargement")
		assert.NotContains(t, html, "Aucune feuille d'émargement")
	})

	t.Run("image inlined", func(t *testing.T) {
		r := testReport(catalog)
		r.Attachment = &domain.Attachment{
			Data:        jpegBytes(t, 100, 80),
			ContentType: "image/jpeg",
			Filename:    "emargement.jpg",
		}
		html := compose(t, Options{}, r, catalog)
		assert.Contains(t, html, "data:image/jpeg;base64,")
	})

	t.Run("oversized image is downscaled", func(t *testing.T) {
		r := testReport(catalog)
		r.Attachment = &domain.Attachment{
			Data:        jpegBytes(t, 2400, 1200),
			ContentType: "image/jpeg",
			Filename:    "emargement.jpg",
		}
		html := compose(t, Options{}, r, catalog)

		img, err := imaging.Decode(bytes.NewReader(extractInlineImage(t, html)))
		require.NoError(t, err)
		assert.LessOrEqual(t, img.Bounds().Dx(), maxAttachmentWidth)
	})
}

func TestCompose_CriteriaFollowCatalogOrder(t *testing.T) {
	catalog := domain.DefaultCatalog()
	html := compose(t, Options{}, testReport(catalog), catalog)

	// Category tables appear in weighting order with breaks between them.
	admin := strings.Index(html, `<h3 class="category-header">Administratif</h3>`)
	secu := strings.Index(html, `<h3 class="category-header">Sécurité</h3>`)
	env := strings.Index(html, `<h3 class="category-header">Environnement</h3>`)
	require.True(t, admin >= 0 && secu >= 0 && env >= 0)
	assert.Less(t, admin, secu)
	assert.Less(t, secu, env)
	assert.Equal(t, 2, strings.Count(html, "criteria-section new-page"))
}

// extractInlineImage pulls the attachment image bytes back out of the
// rendered document. The template engine entity-escapes attribute values
// ('+' becomes &#43;), so the payload is unescaped before decoding.
func extractInlineImage(t *testing.T, doc string) []byte {
	t.Helper()
	const marker = `<img src="data:image/jpeg;base64,`
	start := strings.Index(doc, marker)
	require.GreaterOrEqual(t, start, 0)
	rest := doc[start+len(marker):]
	end := strings.Index(rest, `"`)
	require.GreaterOrEqual(t, end, 0)

	decoded, err := base64.StdEncoding.DecodeString(html.UnescapeString(rest[:end]))
	require.NoError(t, err)
	return decoded
}
