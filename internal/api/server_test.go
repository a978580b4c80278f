package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openimg/image-scraper/internal/config"
	"github.com/openimg/image-scraper/internal/images"
	"github.com/openimg/image-scraper/internal/metrics"
	"github.com/openimg/image-scraper/internal/scraper"
	"github.com/openimg/image-scraper/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeScrapes struct {
	result scraper.Result
	got    []string
}

func (f *fakeScrapes) ScrapeAll(_ context.Context, urls []string) scraper.Result {
	f.got = urls
	return f.result
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, string, []string) error {
	return &scraper.PersistenceError{Op: "upsert", Err: errors.New("down")}
}

func (failingStore) Recent(context.Context, int) ([]scraper.ScrapeRecord, error) {
	return nil, &scraper.PersistenceError{Op: "recent", Err: errors.New("down")}
}

func (failingStore) Delete(context.Context, string) (bool, error) {
	return false, &scraper.PersistenceError{Op: "delete", Err: errors.New("down")}
}

func newTestServer(scrapes ScrapeService, store scraper.Store) *Server {
	client := images.NewClient(5 * time.Second)
	return NewServer(
		scrapes,
		store,
		client,
		images.NewArchiver(client, zap.NewNop()),
		config.Config{History: config.HistoryConfig{Limit: 10}},
		zap.NewNop(),
	)
}

func TestScrape_Succeeds(t *testing.T) {
	t.Parallel()

	scrapes := &fakeScrapes{result: scraper.Result{
		"http://one.test": {"http://one.test/a.png"},
		"http://two.test": {"Error: connection refused"},
	}}
	server := newTestServer(scrapes, memory.NewStore())

	body := `{"urls":["http://one.test","http://two.test"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"http://one.test", "http://two.test"}, scrapes.got)

	var got map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, map[string][]string(scrapes.result), got)
}

func TestScrape_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid input")
}

func TestScrape_MissingURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "no urls key", body: `{}`},
		{name: "null urls", body: `{"urls":null}`},
		{name: "urls not a sequence", body: `{"urls":"http://one.test"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := newTestServer(&fakeScrapes{}, memory.NewStore())
			req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			server.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestScrape_EmptyListIsValid(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeScrapes{result: scraper.Result{}}, memory.NewStore())
	req := httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewBufferString(`{"urls":[]}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{}`, rec.Body.String())
}

func TestHistory_ReturnsRecords(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	require.NoError(t, store.Upsert(context.Background(), "http://one.test", []string{"http://one.test/a.png"}))

	server := newTestServer(&fakeScrapes{}, store)
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var records []scraper.ScrapeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, "http://one.test", records[0].URL)
	require.Equal(t, []string{"http://one.test/a.png"}, records[0].Images)
}

func TestHistory_StoreFailure(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeScrapes{}, failingStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Failed to fetch history")
}

func TestDeleteHistory(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	require.NoError(t, store.Upsert(context.Background(), "http://one.test", nil))
	server := newTestServer(&fakeScrapes{}, store)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing url",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "URL required",
		},
		{
			name:       "unknown url",
			body:       `{"url":"http://missing.test"}`,
			wantStatus: http.StatusNotFound,
			wantBody:   "Not found",
		},
		{
			name:       "deletes existing record",
			body:       `{"url":"http://one.test"}`,
			wantStatus: http.StatusOK,
			wantBody:   "Deleted",
		},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodDelete, "/api/history", bytes.NewBufferString(tt.body))
		rec := httptest.NewRecorder()

		server.Handler().ServeHTTP(rec, req)

		require.Equal(t, tt.wantStatus, rec.Code, tt.name)
		require.Contains(t, rec.Body.String(), tt.wantBody, tt.name)
	}

	_, ok := store.Get("http://one.test")
	require.False(t, ok)
}

func TestDownload_RequiresImages(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	for _, body := range []string{`{}`, `{"images":[]}`, `{invalid`} {
		req := httptest.NewRequest(http.MethodPost, "/api/download", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		server.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "No images provided")
	}
}

func TestDownload_StreamsZip(t *testing.T) {
	t.Parallel()

	var imgBuf bytes.Buffer
	require.NoError(t, png.Encode(&imgBuf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(imgBuf.Bytes())
	}))
	defer origin.Close()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	body := `{"images":["` + origin.URL + `/a.png"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/download", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "images.zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	require.Equal(t, "image_1.png", zr.File[0].Name)
}

func TestProxy_MissingURL(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodGet, "/api/proxy", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Missing image URL")
}

func TestProxy_PassesImageThrough(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("fake image bytes"))
	}))
	defer origin.Close()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodGet, "/api/proxy?url="+origin.URL+"/img.png", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, "fake image bytes", string(data))
}

func TestProxy_PassesOriginStatusThrough(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodGet, "/api/proxy?url="+origin.URL, nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Failed to fetch image: 403")
}

func TestRootLiveness(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Image Scraper API is running.", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeScrapes{}, memory.NewStore())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
