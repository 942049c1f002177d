package domain

import (
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// Work Types
// =============================================================================

// WorkTypes is the fixed vocabulary of selectable work-type tags.
// Free-text work goes in Report.WorkTypesOther.
var WorkTypes = []string{
	"Ravalement", "Gros œuvre", "Maçonnerie", "Décapage", "Serrurerie",
	"Ponçage", "Carrelage", "Couverture", "Intérieur", "Point", "Lavage",
	"Sablage", "Étanchéité", "Découpe", "ITE", "Peinture", "Bardage",
	"Zinguerie", "Piochage",
}

// IsKnownWorkType returns true if the tag belongs to the fixed vocabulary.
func IsKnownWorkType(tag string) bool {
	for _, t := range WorkTypes {
		if t == tag {
			return true
		}
	}
	return false
}

// Subcontractor presence values (radio choice, not a real boolean on the wire).
const (
	SubcontractorPresent = "Oui"
	SubcontractorAbsent  = "Non"
)

// =============================================================================
// Attachment
// =============================================================================

// Attachment is the uploaded attendance sheet (feuille d'émargement):
// a photo or scan as JPEG/PNG, or a PDF.
type Attachment struct {
	Data        []byte
	ContentType string
	Filename    string
}

// IsImage returns true if the attachment is an image that can be embedded
// inline in the composed document.
func (a *Attachment) IsImage() bool {
	return a != nil && strings.HasPrefix(strings.ToLower(a.ContentType), "image/")
}

// IsPDF returns true if the attachment is a PDF document.
func (a *Attachment) IsPDF() bool {
	return a != nil && strings.ToLower(strings.Split(a.ContentType, ";")[0]) == "application/pdf"
}

// =============================================================================
// Criterion Entries
// =============================================================================

// CriterionKey identifies one criterion entry by category and name.
// This replaces the historical string-built "<category>_<criterion>"
// session keys with a typed mapping; the codec reconstructs the string
// form only on the wire.
type CriterionKey struct {
	Category Category
	Name     string
}

// CriterionEntry is the (rating, observation) pair attached to a criterion.
type CriterionEntry struct {
	Rating      Rating
	Observation string
}

// =============================================================================
// Report
// =============================================================================

// Report is the aggregate root for one site-visit inspection session.
// It is created with defaults at session start, mutated field by field,
// and either exported (JSON or PDF) or discarded with the session.
// There is no shared or concurrent access to a Report.
type Report struct {
	VisitDate     time.Time // date of the visit (date precision only)
	VisitTime     string    // HH:MM free text, validated non-blocking
	ClientName    string    // optional, only used by the client-name variant
	Address       string    // required for export
	Subcontractor string    // "Oui" / "Non"
	Headcount     int       // workers on site, non-negative
	Supervisor    string    // conducteur de travaux, required for export
	Foreman       string    // chef de chantier, required for export
	SiteContact   string    // contact chantier, required for export
	Author        string    // rédacteur du rapport, required for export

	WorkTypes      []string // selected tags from the fixed vocabulary
	WorkTypesOther string   // free-text "other" work type

	VisitTheme        string
	GeneralEvaluation string
	PhotoLink         string // shared photo-album URL

	Attachment *Attachment

	criteria map[CriterionKey]CriterionEntry
}

// NewReport creates a report with session defaults: today's visit date,
// no subcontractor, and every catalog criterion rated Non Applicable.
func NewReport(catalog *Catalog) *Report {
	r := &Report{
		VisitDate:     time.Now(),
		Subcontractor: SubcontractorAbsent,
		criteria:      make(map[CriterionKey]CriterionEntry, catalog.Len()),
	}
	for _, cat := range Categories {
		for _, name := range catalog.Criteria(cat) {
			r.criteria[CriterionKey{cat, name}] = CriterionEntry{Rating: RatingNotApplicable}
		}
	}
	return r
}

// Rating returns the rating for a criterion, defaulting to Non Applicable
// for entries that were never set.
func (r *Report) Rating(cat Category, name string) Rating {
	if e, ok := r.criteria[CriterionKey{cat, name}]; ok && e.Rating != "" {
		return e.Rating
	}
	return RatingNotApplicable
}

// Observation returns the observation text for a criterion ("" if unset).
func (r *Report) Observation(cat Category, name string) string {
	return r.criteria[CriterionKey{cat, name}].Observation
}

// SetRating records a rating. Entries outside the current catalog are
// accepted; loaded documents may carry criteria from older catalogs.
func (r *Report) SetRating(cat Category, name string, rating Rating) {
	key := CriterionKey{cat, name}
	e := r.criteria[key]
	e.Rating = rating
	r.criteria[key] = e
}

// SetObservation records an observation for a criterion.
func (r *Report) SetObservation(cat Category, name, obs string) {
	key := CriterionKey{cat, name}
	e := r.criteria[key]
	e.Observation = obs
	r.criteria[key] = e
}

// CriterionKeys returns every criterion key present on the report,
// including entries outside the current catalog. Order is unspecified.
func (r *Report) CriterionKeys() []CriterionKey {
	keys := make([]CriterionKey, 0, len(r.criteria))
	for k := range r.criteria {
		keys = append(keys, k)
	}
	return keys
}

// =============================================================================
// Validation
// =============================================================================

// requiredFields maps export-blocking fields to their wire/display names.
var requiredFields = []struct {
	name  string
	value func(*Report) string
}{
	{"adresse", func(r *Report) string { return r.Address }},
	{"conducteur", func(r *Report) string { return r.Supervisor }},
	{"chef_chantier", func(r *Report) string { return r.Foreman }},
	{"contact_chantier", func(r *Report) string { return r.SiteContact }},
	{"redacteur_rapport", func(r *Report) string { return r.Author }},
}

// MissingRequiredFields returns the wire names of required export fields
// that are blank or whitespace-only, in fixed order.
func (r *Report) MissingRequiredFields() []string {
	var missing []string
	for _, f := range requiredFields {
		if strings.TrimSpace(f.value(r)) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ValidateForExport rejects the report if any required field is blank.
// Both the JSON save and the PDF export go through this check.
func (r *Report) ValidateForExport(op string) error {
	missing := r.MissingRequiredFields()
	if len(missing) == 0 {
		return nil
	}
	err := NewValidationError(op, missing[0], "champ obligatoire")
	for _, name := range missing[1:] {
		err.Fields[name] = "champ obligatoire"
	}
	return err
}

var visitTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// VisitTimeOK reports whether the visit time matches HH:MM. An empty time
// is fine; a mismatch is a warning only and never blocks an export.
func (r *Report) VisitTimeOK() bool {
	return r.VisitTime == "" || visitTimePattern.MatchString(r.VisitTime)
}

// =============================================================================
// Field Updates
// =============================================================================

// ReportUpdate carries a partial field update from the form. Nil pointers
// leave the corresponding report field untouched.
type ReportUpdate struct {
	VisitDate         *time.Time
	VisitTime         *string
	ClientName        *string
	Address           *string
	Subcontractor     *string
	Headcount         *int
	Supervisor        *string
	Foreman           *string
	SiteContact       *string
	Author            *string
	WorkTypes         *[]string
	WorkTypesOther    *string
	VisitTheme        *string
	GeneralEvaluation *string
	PhotoLink         *string
}

// Apply copies the set fields of the update onto the report.
// Returns a validation error for out-of-range values; in that case the
// report is left fully unchanged.
func (r *Report) Apply(u ReportUpdate) error {
	if u.Headcount != nil && *u.Headcount < 0 {
		return NewValidationError("report.apply", "effectif", "doit être positif ou nul")
	}
	if u.Subcontractor != nil && *u.Subcontractor != SubcontractorPresent && *u.Subcontractor != SubcontractorAbsent {
		return NewValidationError("report.apply", "presence_sst", "doit être Oui ou Non")
	}

	if u.VisitDate != nil {
		r.VisitDate = *u.VisitDate
	}
	if u.VisitTime != nil {
		r.VisitTime = *u.VisitTime
	}
	if u.ClientName != nil {
		r.ClientName = *u.ClientName
	}
	if u.Address != nil {
		r.Address = *u.Address
	}
	if u.Subcontractor != nil {
		r.Subcontractor = *u.Subcontractor
	}
	if u.Headcount != nil {
		r.Headcount = *u.Headcount
	}
	if u.Supervisor != nil {
		r.Supervisor = *u.Supervisor
	}
	if u.Foreman != nil {
		r.Foreman = *u.Foreman
	}
	if u.SiteContact != nil {
		r.SiteContact = *u.SiteContact
	}
	if u.Author != nil {
		r.Author = *u.Author
	}
	if u.WorkTypes != nil {
		r.WorkTypes = *u.WorkTypes
	}
	if u.WorkTypesOther != nil {
		r.WorkTypesOther = *u.WorkTypesOther
	}
	if u.VisitTheme != nil {
		r.VisitTheme = *u.VisitTheme
	}
	if u.GeneralEvaluation != nil {
		r.GeneralEvaluation = *u.GeneralEvaluation
	}
	if u.PhotoLink != nil {
		r.PhotoLink = *u.PhotoLink
	}
	return nil
}
