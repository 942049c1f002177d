// Package codec serializes a fiche de visite to its persisted JSON form
// and back.
//
// The wire format is the historical flat key/value document: French scalar
// keys, "<Catégorie>_<Critère>" keys for ratings, "obs_<Catégorie>_<Critère>"
// keys for observations, and the overall score at save time under
// "note_chantier". Files written by older versions of the product are
// accepted: optional keys default silently and unknown keys are ignored.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/brconsult/fichevisite/internal/domain"
)

// DateFormat is the fixed literal layout of the persisted visit date.
const DateFormat = "2006-01-02"

const obsPrefix = "obs_"

// =============================================================================
// Error Kinds
// =============================================================================

// ErrNotJSON indicates the document is not a valid JSON object at all.
var ErrNotJSON = errors.New("document is not valid JSON")

// MissingFieldsError indicates a document lacks required keys.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// DateFormatError indicates the date key does not match DateFormat.
type DateFormatError struct {
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date format: %q (want %s)", e.Value, DateFormat)
}

// requiredKeys are the keys every loadable document must carry.
var requiredKeys = []string{"date", "adresse", "conducteur", "chef_chantier", "contact_chantier"}

// =============================================================================
// Encoding
// =============================================================================

// utf8BOM is prepended to encoded documents; the historical writer emitted
// UTF-8 with a byte-order marker and existing tooling expects it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encode serializes the report and its overall score to the persisted JSON
// document. The attachment blob is deliberately not part of the document.
func Encode(r *domain.Report, scores domain.ScoreSummary) ([]byte, error) {
	doc := map[string]any{
		"date":                 r.VisitDate.Format(DateFormat),
		"heure":                r.VisitTime,
		"nom_client":           r.ClientName,
		"adresse":              r.Address,
		"presence_sst":         r.Subcontractor,
		"effectif":             r.Headcount,
		"conducteur":           r.Supervisor,
		"chef_chantier":        r.Foreman,
		"contact_chantier":     r.SiteContact,
		"redacteur_rapport":    r.Author,
		"travaux_selectionnes": workTypes(r),
		"travaux_autres":       r.WorkTypesOther,
		"theme_visite":         r.VisitTheme,
		"evaluation_generale":  r.GeneralEvaluation,
		"lien_photos":          r.PhotoLink,
	}

	if scores.OverallApplicable {
		doc["note_chantier"] = scores.Overall
	} else {
		doc["note_chantier"] = "NA"
	}

	for _, key := range r.CriterionKeys() {
		wire := fmt.Sprintf("%s_%s", key.Category, key.Name)
		doc[wire] = r.Rating(key.Category, key.Name).String()
		doc[obsPrefix+wire] = r.Observation(key.Category, key.Name)
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode fiche: %w", err)
	}
	return buf.Bytes(), nil
}

func workTypes(r *domain.Report) []string {
	if r.WorkTypes == nil {
		return []string{}
	}
	return r.WorkTypes
}

// =============================================================================
// Decoding
// =============================================================================

// Decode parses a persisted document into a fresh report. It never mutates
// existing state: on any error the caller's current report is untouched.
//
// Required keys are date, adresse, conducteur, chef_chantier and
// contact_chantier; everything else defaults silently for compatibility
// with documents written by older versions. Rating and observation keys
// matching a category prefix are applied even when the criterion is not in
// the current catalog.
func Decode(data []byte, catalog *domain.Catalog) (*domain.Report, error) {
	// Tolerate the BOM the historical writer emitted.
	data, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode document bytes: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := doc[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	dateStr, _ := doc["date"].(string)
	visitDate, err := time.Parse(DateFormat, dateStr)
	if err != nil {
		return nil, &DateFormatError{Value: dateStr}
	}

	r := domain.NewReport(catalog)
	r.VisitDate = visitDate
	r.VisitTime = stringKey(doc, "heure")
	r.ClientName = stringKey(doc, "nom_client")
	r.Address = stringKey(doc, "adresse")
	if v := stringKey(doc, "presence_sst"); v != "" {
		r.Subcontractor = v
	}
	r.Headcount = intKey(doc, "effectif")
	r.Supervisor = stringKey(doc, "conducteur")
	r.Foreman = stringKey(doc, "chef_chantier")
	r.SiteContact = stringKey(doc, "contact_chantier")
	r.Author = stringKey(doc, "redacteur_rapport")
	r.WorkTypes = stringSliceKey(doc, "travaux_selectionnes")
	r.WorkTypesOther = stringKey(doc, "travaux_autres")
	r.VisitTheme = stringKey(doc, "theme_visite")
	r.GeneralEvaluation = stringKey(doc, "evaluation_generale")
	r.PhotoLink = stringKey(doc, "lien_photos")

	applyCriterionKeys(r, doc)
	return r, nil
}

// applyCriterionKeys walks the document for category-prefixed keys and
// applies them as rating/observation overrides.
func applyCriterionKeys(r *domain.Report, doc map[string]any) {
	for key, raw := range doc {
		value, ok := raw.(string)
		if !ok {
			continue
		}

		name := key
		isObs := strings.HasPrefix(name, obsPrefix)
		if isObs {
			name = strings.TrimPrefix(name, obsPrefix)
		}

		for _, cat := range domain.Categories {
			prefix := cat.String() + "_"
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			crit := strings.TrimPrefix(name, prefix)
			if isObs {
				r.SetObservation(cat, crit, value)
			} else {
				r.SetRating(cat, crit, domain.Rating(value))
			}
			break
		}
	}
}

func stringKey(doc map[string]any, key string) string {
	v, _ := doc[key].(string)
	return v
}

func intKey(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func stringSliceKey(doc map[string]any, key string) []string {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
