// Package compose turns a report and its computed scores into the HTML
// document handed to the PDF renderer.
//
// This is a pure structural transform: it never recomputes scores and has
// no numeric logic of its own. The two historical layout variants (with and
// without client name and branding header) are unified behind Options.
package compose

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/brconsult/fichevisite/internal/domain"
)

//go:embed template.html
var templateFS embed.FS

// maxAttachmentWidth bounds inline attachment images; scans straight from a
// phone camera would otherwise bloat the rendered PDF.
const maxAttachmentWidth = 1200

// Options selects the layout variant.
type Options struct {
	// IncludeClientName adds the client-name row to the general
	// information grid.
	IncludeClientName bool

	// Logo, when set, is embedded in a branding header above the title.
	// Raw image bytes (JPEG or PNG).
	Logo []byte
}

// Composer renders reports to HTML.
type Composer struct {
	opts    Options
	catalog *domain.Catalog
	tmpl    *template.Template
	logger  *slog.Logger
}

// New creates a Composer. A nil catalog falls back to the default one.
// Returns an error only if the embedded template fails to parse, which
// indicates a build problem.
func New(opts Options, catalog *domain.Catalog, logger *slog.Logger) (*Composer, error) {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.ParseFS(templateFS, "template.html")
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}
	return &Composer{opts: opts, catalog: catalog, tmpl: tmpl, logger: logger}, nil
}

// Compose renders the report and scores to a complete HTML document.
func (c *Composer) Compose(r *domain.Report, scores domain.ScoreSummary) ([]byte, error) {
	data := c.prepare(r, scores)

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	c.logger.Debug("document composed",
		"html_size", buf.Len(),
		"work_tags", len(data.WorkTags),
		"attachment", data.Attachment.Kind,
	)
	return buf.Bytes(), nil
}

// =============================================================================
// View Model
// =============================================================================

type documentData struct {
	Title       string
	LogoDataURI template.URL // empty when branding is off

	ClientName    string // empty when the variant flag is off
	DateDisplay   string
	TimeDisplay   string
	Address       string
	Headcount     int
	Supervisor    string
	Foreman       string
	SiteContact   string
	Author        string
	Subcontractor string

	WorkTags          []string
	VisitTheme        string
	GeneralEvaluation string
	PhotoLink         string

	Results []resultCell
	Overall string

	Categories []categoryTable

	Attachment  attachmentView
	GeneratedAt string
}

type resultCell struct {
	Label string
	Score string
}

type categoryTable struct {
	Name    string
	NewPage bool
	Rows    []criterionRow
}

type criterionRow struct {
	Name        string
	Rating      string
	StatusClass string
	Observation string
}

type attachmentView struct {
	Kind         string // "image", "pdf" or "none"
	ImageDataURI template.URL
}

func (c *Composer) prepare(r *domain.Report, scores domain.ScoreSummary) documentData {
	data := documentData{
		Title:             "FICHE DE VISITE CHANTIER",
		DateDisplay:       r.VisitDate.Format("02/01/2006"),
		TimeDisplay:       r.VisitTime,
		Address:           r.Address,
		Headcount:         r.Headcount,
		Supervisor:        r.Supervisor,
		Foreman:           r.Foreman,
		SiteContact:       r.SiteContact,
		Author:            r.Author,
		Subcontractor:     r.Subcontractor,
		VisitTheme:        r.VisitTheme,
		GeneralEvaluation: r.GeneralEvaluation,
		PhotoLink:         r.PhotoLink,
		Overall:           scores.OverallDisplay(),
		GeneratedAt:       time.Now().Format("02/01/2006 à 15:04"),
	}

	if data.TimeDisplay == "" {
		data.TimeDisplay = "Non renseignée"
	}
	// The client-facing variant uses the report wording.
	if c.opts.IncludeClientName || len(c.opts.Logo) > 0 {
		data.Title = "RAPPORT DE VISITE CHANTIER"
	}
	if c.opts.IncludeClientName {
		data.ClientName = r.ClientName
		if data.ClientName == "" {
			data.ClientName = "Non renseigné"
		}
	}
	if len(c.opts.Logo) > 0 {
		data.LogoDataURI = dataURI(c.opts.Logo, "image/jpeg")
	}

	data.WorkTags = append(data.WorkTags, r.WorkTypes...)
	if r.WorkTypesOther != "" {
		data.WorkTags = append(data.WorkTags, r.WorkTypesOther)
	}

	for _, cs := range scores.Categories {
		data.Results = append(data.Results, resultCell{
			Label: cs.Category.String(),
			Score: cs.Display(),
		})
	}

	data.Categories = c.criteriaTables(r, c.catalog)
	data.Attachment = c.attachment(r.Attachment)
	return data
}

func (c *Composer) criteriaTables(r *domain.Report, catalog *domain.Catalog) []categoryTable {
	tables := make([]categoryTable, 0, len(domain.Categories))
	for i, cat := range domain.Categories {
		table := categoryTable{Name: cat.String(), NewPage: i > 0}
		for _, name := range catalog.Criteria(cat) {
			rating := r.Rating(cat, name)
			obs := r.Observation(cat, name)
			if obs == "" {
				obs = "-"
			}
			table.Rows = append(table.Rows, criterionRow{
				Name:        name,
				Rating:      rating.String(),
				StatusClass: statusClass(rating),
				Observation: obs,
			})
		}
		tables = append(tables, table)
	}
	return tables
}

// statusClass maps a rating to its badge class. Unrecognized or missing
// ratings fall back to the "not applicable" style rather than failing.
func statusClass(r domain.Rating) string {
	switch r {
	case domain.RatingSatisfactory:
		return "status-satisfaisant"
	case domain.RatingPartiallySatisfactory:
		return "status-partiellement"
	case domain.RatingNotSatisfactory:
		return "status-non-satisfaisant"
	default:
		return "status-na"
	}
}

// attachment prepares the attendance-sheet block. Images are downscaled and
// re-encoded for inline display; PDFs get a textual placeholder.
func (c *Composer) attachment(a *domain.Attachment) attachmentView {
	switch {
	case a.IsImage():
		return attachmentView{Kind: "image", ImageDataURI: c.inlineImage(a)}
	case a.IsPDF():
		return attachmentView{Kind: "pdf"}
	default:
		return attachmentView{Kind: "none"}
	}
}

func (c *Composer) inlineImage(a *domain.Attachment) template.URL {
	img, err := imaging.Decode(bytes.NewReader(a.Data))
	if err != nil {
		// Undecodable image data: embed the original bytes untouched and
		// let the renderer cope.
		c.logger.Warn("attachment image decode failed, embedding raw bytes",
			"content_type", a.ContentType,
			"error", err,
		)
		return dataURI(a.Data, a.ContentType)
	}

	if img.Bounds().Dx() > maxAttachmentWidth {
		img = imaging.Resize(img, maxAttachmentWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		c.logger.Warn("attachment image re-encode failed, embedding raw bytes", "error", err)
		return dataURI(a.Data, a.ContentType)
	}
	return dataURI(buf.Bytes(), "image/jpeg")
}

func dataURI(data []byte, contentType string) template.URL {
	return template.URL(fmt.Sprintf("data:%s;base64,%s",
		contentType, base64.StdEncoding.EncodeToString(data)))
}
