package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brconsult/fichevisite/internal/codec"
	"github.com/brconsult/fichevisite/internal/domain"
	"github.com/brconsult/fichevisite/internal/service"
)

// maxBodySize caps request bodies; the largest legitimate payload is an
// attendance-sheet upload.
const maxBodySize = 12 << 20

// ReportHandler serves the fiche editing API. Field names on the wire are
// the same French keys as the persisted JSON document.
type ReportHandler struct {
	svc    *service.ReportService
	logger *slog.Logger
}

// NewReportHandler creates a handler bound to the report service.
func NewReportHandler(svc *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, logger: logger}
}

// Register wires the API routes onto the mux. PDF export shells out to
// wkhtmltopdf, so callers may pass middleware (rate limiting) applied to
// that route only.
func (h *ReportHandler) Register(mux *http.ServeMux, exportMiddleware ...func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/report", h.GetReport)
	mux.HandleFunc("PATCH /api/report/fields", h.PatchFields)
	mux.HandleFunc("PUT /api/report/criteria", h.PutCriterion)
	mux.HandleFunc("POST /api/report/attachment", h.UploadAttachment)
	mux.HandleFunc("DELETE /api/report/attachment", h.DeleteAttachment)
	mux.HandleFunc("GET /api/report/scores", h.GetScores)
	mux.HandleFunc("POST /api/report/save", h.Save)
	mux.HandleFunc("POST /api/report/load", h.Load)

	var export http.Handler = http.HandlerFunc(h.ExportPDF)
	for i := len(exportMiddleware) - 1; i >= 0; i-- {
		export = exportMiddleware[i](export)
	}
	mux.Handle("POST /api/report/export", export)
}

// Health responds to liveness probes.
func (h *ReportHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetReport returns the current fiche in its document form.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document()
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(doc)
}

// fieldsPayload mirrors the document's scalar keys. Absent keys leave the
// corresponding fiche field untouched.
type fieldsPayload struct {
	Date             *string   `json:"date"`
	Heure            *string   `json:"heure"`
	NomClient        *string   `json:"nom_client"`
	Adresse          *string   `json:"adresse"`
	PresenceSST      *string   `json:"presence_sst"`
	Effectif         *int      `json:"effectif"`
	Conducteur       *string   `json:"conducteur"`
	ChefChantier     *string   `json:"chef_chantier"`
	ContactChantier  *string   `json:"contact_chantier"`
	RedacteurRapport *string   `json:"redacteur_rapport"`
	TravauxSelect    *[]string `json:"travaux_selectionnes"`
	TravauxAutres    *string   `json:"travaux_autres"`
	ThemeVisite      *string   `json:"theme_visite"`
	EvaluationGen    *string   `json:"evaluation_generale"`
	LienPhotos       *string   `json:"lien_photos"`
}

// PatchFields applies a partial field update to the fiche.
func (h *ReportHandler) PatchFields(w http.ResponseWriter, r *http.Request) {
	var payload fieldsPayload
	if err := decodeJSON(r, &payload); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("report.fields", "corps de requête JSON invalide"))
		return
	}

	update := domain.ReportUpdate{
		VisitTime:         payload.Heure,
		ClientName:        payload.NomClient,
		Address:           payload.Adresse,
		Subcontractor:     payload.PresenceSST,
		Headcount:         payload.Effectif,
		Supervisor:        payload.Conducteur,
		Foreman:           payload.ChefChantier,
		SiteContact:       payload.ContactChantier,
		Author:            payload.RedacteurRapport,
		WorkTypes:         payload.TravauxSelect,
		WorkTypesOther:    payload.TravauxAutres,
		VisitTheme:        payload.ThemeVisite,
		GeneralEvaluation: payload.EvaluationGen,
		PhotoLink:         payload.LienPhotos,
	}

	if payload.Date != nil {
		date, err := time.Parse(codec.DateFormat, *payload.Date)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.NewValidationError("report.fields", "date",
				fmt.Sprintf("date invalide %q : format AAAA-MM-JJ attendu", *payload.Date)))
			return
		}
		update.VisitDate = &date
	}

	if err := h.svc.ApplyUpdate(update); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type criterionPayload struct {
	Categorie   string `json:"categorie"`
	Critere     string `json:"critere"`
	Evaluation  string `json:"evaluation"`
	Observation string `json:"observation"`
}

// PutCriterion records a rating and observation for one criterion.
func (h *ReportHandler) PutCriterion(w http.ResponseWriter, r *http.Request) {
	var payload criterionPayload
	if err := decodeJSON(r, &payload); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("report.criterion", "corps de requête JSON invalide"))
		return
	}
	if payload.Critere == "" {
		ErrorResponse(w, r, h.logger, domain.NewValidationError("report.criterion", "critere", "champ obligatoire"))
		return
	}

	err := h.svc.SetCriterion(
		domain.Category(payload.Categorie),
		payload.Critere,
		domain.Rating(payload.Evaluation),
		payload.Observation,
	)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadAttachment attaches an attendance sheet from a multipart form.
// The file goes in the "emargement" part.
func (h *ReportHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseMultipartForm(maxBodySize); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("report.attachment", "formulaire multipart invalide"))
		return
	}

	file, header, err := r.FormFile("emargement")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.NewValidationError("report.attachment", "emargement", "fichier manquant"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "report.attachment", "lecture du fichier impossible"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if err := h.svc.SetAttachment(r.Context(), data, contentType, header.Filename); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAttachment removes the current attendance sheet.
func (h *ReportHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearAttachment()
	w.WriteHeader(http.StatusNoContent)
}

// GetScores returns the computed category and overall scores.
func (h *ReportHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	scores := h.svc.Scores()

	type categoryScore struct {
		Categorie   string `json:"categorie"`
		Applicable  bool   `json:"applicable"`
		Pourcentage int    `json:"pourcentage"`
		Affichage   string `json:"affichage"`
	}

	body := struct {
		Categories []categoryScore `json:"categories"`
		Applicable bool            `json:"note_applicable"`
		Note       float64         `json:"note_chantier"`
		Affichage  string          `json:"affichage"`
	}{
		Applicable: scores.OverallApplicable,
		Note:       scores.Overall,
		Affichage:  scores.OverallDisplay(),
	}
	for _, cs := range scores.Categories {
		body.Categories = append(body.Categories, categoryScore{
			Categorie:   cs.Category.String(),
			Applicable:  cs.Applicable,
			Pourcentage: cs.Percent,
			Affichage:   cs.Display(),
		})
	}

	writeJSON(w, http.StatusOK, body)
}

// Save serializes the fiche and returns the document as a download.
func (h *ReportHandler) Save(w http.ResponseWriter, r *http.Request) {
	filename, data, err := h.svc.Save(r.Context(), time.Now())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

// Load replaces the current fiche with an uploaded saved document.
func (h *ReportHandler) Load(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("report.load", "lecture du document impossible"))
		return
	}

	if err := h.svc.Load(data); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPDF renders the fiche and returns the PDF as a download.
// Non-blocking issues (a malformed visit time) come back as
// X-Export-Warning headers alongside the document.
func (h *ReportHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ExportPDF(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	for _, warning := range res.Warnings {
		w.Header().Add("X-Export-Warning", warning)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	_, _ = w.Write(res.PDF)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	return dec.Decode(dst)
}
