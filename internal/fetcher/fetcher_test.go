package fetcher

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, body := range members {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestResolve_LocalPassthrough(t *testing.T) {
	got, err := Resolve(context.Background(), "/data/segments.shp", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/data/segments.shp", got)
}

func TestResolve_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("csv,data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	got, err := Resolve(context.Background(), srv.URL+"/inspections.csv", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "inspections.csv"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "csv,data", string(data))
}

func TestResolve_ZippedShapefile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "segments.zip")
	writeZip(t, zipPath, map[string]string{
		"segments.shp": "shp",
		"segments.dbf": "dbf",
		"segments.shx": "shx",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, zipPath)
	}))
	defer srv.Close()

	dest := t.TempDir()
	got, err := Resolve(context.Background(), srv.URL+"/segments.zip", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "segments.shp"), got)

	// Sidecars landed next to the .shp.
	_, err = os.Stat(filepath.Join(dest, "segments.dbf"))
	assert.NoError(t, err)
}

func TestResolve_UnsupportedScheme(t *testing.T) {
	_, err := Resolve(context.Background(), "gopher://host/x", t.TempDir())
	assert.Error(t, err)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxRetries: 5, RequestsPerSecond: 1000, Burst: 1000})
	dest := filepath.Join(t.TempDir(), "out.bin")
	n, err := f.DownloadToFile(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_NotFoundIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxRetries: 3, RequestsPerSecond: 1000, Burst: 1000})
	_, err := f.Download(context.Background(), srv.URL)
	assert.Error(t, err)
	// 404 is not retryable.
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{"default port", "ftp://gis.example.gov/drops/segments.zip", "gis.example.gov:21", "/drops/segments.zip", false},
		{"explicit port", "ftp://gis.example.gov:2121/a.csv", "gis.example.gov:2121", "/a.csv", false},
		{"wrong scheme", "http://gis.example.gov/a.csv", "", "", true},
		{"no path", "ftp://gis.example.gov", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestExtractZIP_ZipSlipRejected(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{"../escape.txt": "x"})

	_, err := ExtractZIP(zipPath, t.TempDir())
	assert.Error(t, err)
}

func TestFindShapefile(t *testing.T) {
	assert.Equal(t, "/a/b.shp", FindShapefile([]string{"/a/b.dbf", "/a/b.shp", "/a/b.shx"}))
	assert.Equal(t, "", FindShapefile([]string{"/a/b.csv"}))
}
