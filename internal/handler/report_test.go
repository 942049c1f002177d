package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brconsult/fichevisite/internal/compose"
	"github.com/brconsult/fichevisite/internal/domain"
	"github.com/brconsult/fichevisite/internal/service"
)

type stubConverter struct{}

func (stubConverter) Convert(ctx context.Context, html []byte, w io.Writer) error {
	_, err := w.Write([]byte("%PDF-1.4 stub"))
	return err
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	catalog := domain.DefaultCatalog()
	composer, err := compose.New(compose.Options{}, catalog, logger)
	require.NoError(t, err)

	svc := service.NewReportService(catalog, composer, stubConverter{}, nil, logger)
	h := NewReportHandler(svc, logger)

	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func patchRequired(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := do(t, srv, http.MethodPatch, "/api/report/fields", `{
		"adresse": "12 rue des Lilas, Lyon",
		"conducteur": "A. Martin",
		"chef_chantier": "B. Dupont",
		"contact_chantier": "C. Bernard",
		"redacteur_rapport": "D. Petit",
		"date": "2025-03-16"
	}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetReport(t *testing.T) {
	srv := newTestServer(t)
	patchRequired(t, srv)

	resp := do(t, srv, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "12 rue des Lilas, Lyon", doc["adresse"])
	assert.Equal(t, "2025-03-16", doc["date"])
	assert.Equal(t, "Non Applicable", doc["Sécurité_Port des EPI et vêtements de travail classiques"])
}

func TestPatchFields_Validation(t *testing.T) {
	srv := newTestServer(t)

	t.Run("bad date", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/report/fields", `{"date": "16/03/2025"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		errObj := body["error"].(map[string]any)
		fields := errObj["fields"].(map[string]any)
		assert.Contains(t, fields, "date")
	})

	t.Run("negative headcount", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/report/fields", `{"effectif": -3}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not json", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/report/fields", "pas du json")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPutCriterion(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPut, "/api/report/criteria", `{
		"categorie": "Sécurité",
		"critere": "Port des EPI et vêtements de travail classiques",
		"evaluation": "Satisfaisant",
		"observation": "casques portés"
	}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/report/scores", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scores struct {
		Categories []struct {
			Categorie   string `json:"categorie"`
			Applicable  bool   `json:"applicable"`
			Pourcentage int    `json:"pourcentage"`
		} `json:"categories"`
		Applicable bool `json:"note_applicable"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scores))
	assert.True(t, scores.Applicable)
	for _, cs := range scores.Categories {
		if cs.Categorie == "Sécurité" {
			assert.True(t, cs.Applicable)
			assert.Equal(t, 100, cs.Pourcentage)
		}
	}

	t.Run("unknown rating", func(t *testing.T) {
		resp := do(t, srv, http.MethodPut, "/api/report/criteria", `{
			"categorie": "Sécurité",
			"critere": "Port des EPI et vêtements de travail classiques",
			"evaluation": "Bien"
		}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing criterion name", func(t *testing.T) {
		resp := do(t, srv, http.MethodPut, "/api/report/criteria", `{"categorie": "Sécurité"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSaveLoadExport(t *testing.T) {
	srv := newTestServer(t)

	t.Run("save blocked on incomplete fiche", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/report/save", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	patchRequired(t, srv)

	var saved []byte
	t.Run("save succeeds once complete", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/report/save", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "visite_chantier_")

		var err error
		saved, err = io.ReadAll(resp.Body)
		require.NoError(t, err)
	})

	t.Run("load accepts a saved document", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/report/load", string(saved))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("load rejects garbage", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/report/load", "pas du json")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("export returns pdf download", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/report/export", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "fiche_visite_chantier_16-03-2025.pdf")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 stub", string(body))
	})

	t.Run("bad visit time warns but still exports", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/report/fields", `{"heure": "8h30"}`)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = do(t, srv, http.MethodPost, "/api/report/export", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("X-Export-Warning"), "HH:MM")
	})
}

func TestAttachmentUpload(t *testing.T) {
	srv := newTestServer(t)

	upload := func(t *testing.T, contentType string) *http.Response {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="emargement"; filename="feuille.bin"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("contenu"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/report/attachment", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("pdf accepted", func(t *testing.T) {
		resp := upload(t, "application/pdf")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("zip rejected", func(t *testing.T) {
		resp := upload(t, "application/zip")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete clears", func(t *testing.T) {
		resp := do(t, srv, http.MethodDelete, "/api/report/attachment", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}
