// Package service owns the in-progress fiche and orchestrates the save,
// load and export flows around it.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brconsult/fichevisite/internal/codec"
	"github.com/brconsult/fichevisite/internal/compose"
	"github.com/brconsult/fichevisite/internal/domain"
	"github.com/brconsult/fichevisite/internal/metrics"
	"github.com/brconsult/fichevisite/internal/render"
	"github.com/brconsult/fichevisite/internal/storage"
)

// maxAttachmentSize caps attendance-sheet uploads at 10 MiB.
const maxAttachmentSize = 10 << 20

// ReportService holds the single fiche being edited. All access goes
// through the mutex; the underlying report is never shared outside the
// lock. A fresh fiche ID is minted per editing session so archive writes
// for one visit group under one prefix.
type ReportService struct {
	composer  *compose.Composer
	converter render.Converter // nil when no renderer is installed
	store     storage.Storage  // nil disables archiving
	catalog   *domain.Catalog
	logger    *slog.Logger

	mu      sync.Mutex
	report  *domain.Report
	ficheID uuid.UUID
}

// NewReportService starts an editing session with a blank fiche.
func NewReportService(catalog *domain.Catalog, composer *compose.Composer, converter render.Converter, store storage.Storage, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		composer:  composer,
		converter: converter,
		store:     store,
		catalog:   catalog,
		logger:    logger,
		report:    domain.NewReport(catalog),
		ficheID:   uuid.New(),
	}
}

// FicheID returns the identifier of the current editing session.
func (s *ReportService) FicheID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ficheID
}

// Document serializes the current fiche to its JSON document form, without
// the leading byte-order marker.
func (s *ReportService) Document() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := codec.Encode(s.report, domain.ComputeScores(s.report, s.catalog))
	if err != nil {
		return nil, domain.Internal(err, "report.document", "échec de sérialisation de la fiche")
	}
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), nil
}

// ApplyUpdate applies a partial field update to the fiche.
func (s *ReportService) ApplyUpdate(update domain.ReportUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report.Apply(update)
}

// SetCriterion records a rating and observation for one criterion.
// Criteria outside the catalog are accepted; unknown categories and
// ratings are not.
func (s *ReportService) SetCriterion(category domain.Category, name string, rating domain.Rating, observation string) error {
	const op = "report.criterion"

	validCategory := false
	for _, cat := range domain.Categories {
		if cat == category {
			validCategory = true
			break
		}
	}
	if !validCategory {
		return domain.NewValidationError(op, "categorie", fmt.Sprintf("catégorie inconnue : %q", category))
	}
	if !rating.IsValid() {
		return domain.NewValidationError(op, "evaluation", fmt.Sprintf("évaluation inconnue : %q", rating))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.SetRating(category, name, rating)
	s.report.SetObservation(category, name, observation)
	return nil
}

// SetAttachment attaches an attendance sheet and archives a copy.
func (s *ReportService) SetAttachment(ctx context.Context, data []byte, contentType, filename string) error {
	const op = "report.attachment"

	if !storage.IsAllowedAttachmentType(contentType) {
		metrics.AttachmentUploads.WithLabelValues("rejected").Inc()
		return domain.NewValidationError(op, "emargement",
			fmt.Sprintf("format non accepté : %q (jpg, png ou pdf attendu)", contentType))
	}
	if len(data) > maxAttachmentSize {
		metrics.AttachmentUploads.WithLabelValues("rejected").Inc()
		return &domain.Error{
			Code:    domain.ETOOLARGE,
			Op:      op,
			Message: "La feuille d'émargement dépasse la taille maximale (10 Mo).",
		}
	}

	s.mu.Lock()
	s.report.Attachment = &domain.Attachment{
		Data:        data,
		ContentType: contentType,
		Filename:    filename,
	}
	ficheID := s.ficheID
	s.mu.Unlock()

	metrics.AttachmentUploads.WithLabelValues("ok").Inc()
	s.archive(ctx, storage.AttachmentKey(ficheID, contentType), data, contentType)
	return nil
}

// ClearAttachment removes the current attendance sheet.
func (s *ReportService) ClearAttachment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Attachment = nil
}

// Scores computes the category and overall scores of the current fiche.
func (s *ReportService) Scores() domain.ScoreSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ComputeScores(s.report, s.catalog)
}

// Save validates the fiche, serializes it and archives the document.
// Returns the download filename and the document bytes.
func (s *ReportService) Save(ctx context.Context, now time.Time) (string, []byte, error) {
	const op = "report.save"

	s.mu.Lock()
	if err := s.report.ValidateForExport(op); err != nil {
		s.mu.Unlock()
		return "", nil, err
	}

	data, err := codec.Encode(s.report, domain.ComputeScores(s.report, s.catalog))
	ficheID := s.ficheID
	s.mu.Unlock()
	if err != nil {
		return "", nil, domain.Internal(err, op, "échec de sérialisation de la fiche")
	}

	filename := codec.SaveFilename(now)
	metrics.FichesSaved.Inc()
	s.archive(ctx, storage.DocumentKey(ficheID, filename), data, "application/json")

	s.logger.Info("fiche saved", "fiche_id", ficheID, "filename", filename, "size", len(data))
	return filename, data, nil
}

// Load replaces the current fiche with one decoded from a saved document.
// On any decode error the fiche in progress is left untouched. Loading
// starts a new editing session with its own fiche ID.
func (s *ReportService) Load(data []byte) error {
	const op = "report.load"

	report, err := codec.Decode(data, s.catalog)
	if err != nil {
		metrics.FichesLoaded.WithLabelValues("invalid").Inc()
		return domain.Invalid(op, loadErrorMessage(err))
	}

	s.mu.Lock()
	s.report = report
	s.ficheID = uuid.New()
	ficheID := s.ficheID
	s.mu.Unlock()

	metrics.FichesLoaded.WithLabelValues("ok").Inc()
	s.logger.Info("fiche loaded", "fiche_id", ficheID)
	return nil
}

// ExportResult is the outcome of a PDF export.
type ExportResult struct {
	Filename string
	PDF      []byte

	// Warnings carry non-blocking issues, like a visit time that does not
	// match HH:MM. The export proceeds despite them.
	Warnings []string
}

// ExportPDF validates the fiche, composes the document, renders it and
// archives the result. Only the blank required fields block the export; a
// malformed visit time is surfaced as a warning.
func (s *ReportService) ExportPDF(ctx context.Context) (*ExportResult, error) {
	const op = "report.export"

	if s.converter == nil {
		metrics.PDFExports.WithLabelValues("error").Inc()
		return nil, domain.Unavailable(render.ErrRendererUnavailable, op,
			"La génération PDF est indisponible : wkhtmltopdf n'est pas installé.")
	}

	s.mu.Lock()
	if err := s.report.ValidateForExport(op); err != nil {
		s.mu.Unlock()
		metrics.PDFExports.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var warnings []string
	if !s.report.VisitTimeOK() {
		warnings = append(warnings, "heure : format HH:MM attendu")
	}

	scores := domain.ComputeScores(s.report, s.catalog)
	html, err := s.composer.Compose(s.report, scores)
	visitDate := s.report.VisitDate
	ficheID := s.ficheID
	s.mu.Unlock()
	if err != nil {
		metrics.PDFExports.WithLabelValues("error").Inc()
		return nil, domain.Internal(err, op, "échec de composition du document")
	}

	var pdf bytes.Buffer
	start := time.Now()
	if err := s.converter.Convert(ctx, html, &pdf); err != nil {
		metrics.PDFExports.WithLabelValues("error").Inc()
		return nil, domain.Internal(err, op, "échec de génération du PDF")
	}
	metrics.PDFRenderDuration.Observe(time.Since(start).Seconds())

	filename := codec.PDFFilename(visitDate)
	metrics.PDFExports.WithLabelValues("ok").Inc()
	s.archive(ctx, storage.PDFKey(ficheID, filename), pdf.Bytes(), "application/pdf")

	s.logger.Info("pdf exported",
		"fiche_id", ficheID,
		"filename", filename,
		"size", pdf.Len(),
		"warnings", len(warnings),
		"duration", time.Since(start),
	)
	return &ExportResult{Filename: filename, PDF: pdf.Bytes(), Warnings: warnings}, nil
}

// archive best-effort copies an artifact to the configured store. A failed
// archive write never fails the user-facing operation.
func (s *ReportService) archive(ctx context.Context, key string, data []byte, contentType string) {
	if s.store == nil {
		return
	}

	err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		Overwrite:   true,
	})
	if err != nil {
		metrics.ArchiveWrites.WithLabelValues("error").Inc()
		s.logger.Error("archive write failed", "key", key, "error", err)
		return
	}
	metrics.ArchiveWrites.WithLabelValues("ok").Inc()
}

// loadErrorMessage turns codec decode errors into user-facing French.
func loadErrorMessage(err error) string {
	switch e := err.(type) {
	case *codec.MissingFieldsError:
		return fmt.Sprintf("Fichier incomplet, champs manquants : %v", e.Fields)
	case *codec.DateFormatError:
		return fmt.Sprintf("Date invalide %q : format AAAA-MM-JJ attendu.", e.Value)
	default:
		return "Le fichier n'est pas une sauvegarde valide."
	}
}
