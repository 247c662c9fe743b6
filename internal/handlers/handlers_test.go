package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/repository"
	"github.com/photosync/photosort/internal/services"
)

type fakeStatus struct {
	status services.SortStatus
}

func (f *fakeStatus) GetStatus() services.SortStatus {
	return f.status
}

func setupRouter(t *testing.T, manifest repository.ManifestRepo) http.Handler {
	t.Helper()
	status := &fakeStatus{status: services.SortStatus{
		Running: true,
		Workers: 4,
		Total:   10,
		Done:    5,
		Copied:  3,
		Skipped: 2,
	}}
	return NewRouter(NewHealthHandler(), NewStatusHandler(status, manifest), nil)
}

func setupManifest(t *testing.T) (*repository.ManifestRepository, *models.SortRun) {
	t.Helper()
	ctx := context.Background()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := repository.NewManifestRepository(db)

	run, err := models.NewSortRun("/photos", "/sorted")
	require.NoError(t, err)
	require.NoError(t, repo.CreateRun(ctx, run))

	now := time.Now().UTC()
	for _, r := range []models.FileResult{
		{SourcePath: "/photos/a.jpg", DestPath: "/sorted/2023/05/10/a.jpg", Status: models.FileStatusCopied, ProcessedAt: now},
		{SourcePath: "/photos/b.jpg", DestPath: "/sorted/2023/05/10/b.jpg", Status: models.FileStatusCopied, ProcessedAt: now},
		{SourcePath: "/photos/notes.txt", Status: models.FileStatusSkipped, ProcessedAt: now},
	} {
		require.NoError(t, repo.AddFile(ctx, models.NewManifestEntry(run.ID, r)))
	}

	return repo, run
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	router := setupRouter(t, nil)

	for _, path := range []string{"/health", "/api/health"} {
		t.Run(path, func(t *testing.T) {
			w := doGet(t, router, path)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp models.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "healthy", resp.Status)
		})
	}
}

func TestVersionHandler(t *testing.T) {
	w := doGet(t, setupRouter(t, nil), "/api/version")
	require.Equal(t, http.StatusOK, w.Code)

	var resp VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, Version, resp.Version)
	assert.NotEmpty(t, resp.GoVersion)
}

func TestStatusHandler_GetStatus(t *testing.T) {
	router := setupRouter(t, nil)

	w := doGet(t, router, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status services.SortStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Running)
	assert.Equal(t, 10, status.Total)
	assert.Equal(t, 3, status.Copied)
}

func TestStatusHandler_Runs(t *testing.T) {
	t.Run("no manifest", func(t *testing.T) {
		router := setupRouter(t, nil)

		w := doGet(t, router, "/api/runs/abc")
		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "manifest not enabled", resp.Error)
	})

	repo, run := setupManifest(t)
	router := setupRouter(t, repo)

	t.Run("get run with counts", func(t *testing.T) {
		w := doGet(t, router, "/api/runs/"+run.ID)
		require.Equal(t, http.StatusOK, w.Code)

		var details struct {
			ID         string                    `json:"id"`
			SourcePath string                    `json:"sourcePath"`
			Counts     map[models.FileStatus]int `json:"counts"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &details))
		assert.Equal(t, run.ID, details.ID)
		assert.Equal(t, "/photos", details.SourcePath)
		assert.Equal(t, 2, details.Counts[models.FileStatusCopied])
		assert.Equal(t, 1, details.Counts[models.FileStatusSkipped])
	})

	t.Run("unknown run", func(t *testing.T) {
		w := doGet(t, router, "/api/runs/missing")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list files", func(t *testing.T) {
		w := doGet(t, router, "/api/runs/"+run.ID+"/files")
		require.Equal(t, http.StatusOK, w.Code)

		var entries []models.ManifestEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		assert.Len(t, entries, 3)
	})

	t.Run("list files filtered by status", func(t *testing.T) {
		w := doGet(t, router, "/api/runs/"+run.ID+"/files?status=skipped")
		require.Equal(t, http.StatusOK, w.Code)

		var entries []models.ManifestEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "/photos/notes.txt", entries[0].SourcePath)
	})
}
