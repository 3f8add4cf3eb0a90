package multigethttp

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/utils"
)

type rangeServer struct {
	data        []byte
	disposition string
	mu          sync.Mutex
	ranges      []string
}

func (s *rangeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.mu.Lock()
		s.ranges = append(s.ranges, r.Header.Get("Range"))
		s.mu.Unlock()
	}
	if s.disposition != "" {
		w.Header().Set("Content-Disposition", s.disposition)
	}
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(s.data))
}

func payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func newJob(url, dir string, overrides engine.DownloadConfig) *utils.MultigetJob {
	return &utils.MultigetJob{
		ID:        "test",
		JobType:   "http",
		URL:       url,
		OutputDir: dir,
		Overrides: overrides,
		Metadata:  make(map[string]any),
	}
}

func TestHead(t *testing.T) {
	srv := &rangeServer{data: payload(1000), disposition: `attachment; filename="report.pdf"`}
	server := httptest.NewServer(srv)
	defer server.Close()

	client := newRangeClient(utils.NewMultigetHTTPClient(utils.HTTPClientConfig{}))
	info, err := client.Head(t.Context(), server.URL+"/x")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), info.Size)
	assert.Equal(t, "report.pdf", info.FileName)
	assert.True(t, info.AcceptsRanges)
}

func TestHeadErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := newRangeClient(utils.NewMultigetHTTPClient(utils.HTTPClientConfig{}))
	_, err := client.Head(t.Context(), server.URL)
	assert.Error(t, err)
}

func TestGetRange(t *testing.T) {
	data := payload(100)
	server := httptest.NewServer(&rangeServer{data: data})
	defer server.Close()

	client := newRangeClient(utils.NewMultigetHTTPClient(utils.HTTPClientConfig{}))
	resp, err := client.GetRange(t.Context(), server.URL, 10, 19)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, int64(10), resp.ContentLength)
	assert.Equal(t, "bytes 10-19/100", resp.ContentRange)
}

func TestDownloadEndToEnd(t *testing.T) {
	data := payload(int(3*engine.MiB + 17))
	srv := &rangeServer{data: data}
	server := httptest.NewServer(srv)
	defer server.Close()

	dir := t.TempDir()
	job := newJob(server.URL+"/files/blob.bin", dir, engine.DownloadConfig{ChunkCount: 3, LimitMiB: 8})
	var lastDownloaded int64
	job.ProgressFunc = func(downloaded, total int64) { lastDownloaded = downloaded }

	d := &HTTPDownloader{}
	require.NoError(t, d.ValidateJob(job))
	require.NoError(t, d.BuildJob(job))
	assert.Equal(t, filepath.Join(dir, "blob.bin"), job.OutputPath)
	require.NoError(t, d.Download(job))

	got, err := os.ReadFile(job.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), lastDownloaded)
	assert.Equal(t, int64(len(data)), job.Metadata["bytesWritten"])
	assert.Len(t, srv.ranges, 3)
	assert.NoDirExists(t, filepath.Join(dir, engine.TempDirName))
}

func TestDownloadHonorsLimit(t *testing.T) {
	data := payload(int(2 * engine.MiB))
	server := httptest.NewServer(&rangeServer{data: data, disposition: `attachment; filename="head.bin"`})
	defer server.Close()

	dir := t.TempDir()
	job := newJob(server.URL+"/whatever", dir, engine.DownloadConfig{ChunkCount: 2, LimitMiB: 1})
	d := &HTTPDownloader{}
	require.NoError(t, d.BuildJob(job))
	assert.Equal(t, filepath.Join(dir, "head.bin"), job.OutputPath)
	require.NoError(t, d.Download(job))

	got, err := os.ReadFile(job.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, data[:engine.MiB], got)
}

func TestSameNameJobsKeepBothFiles(t *testing.T) {
	first := httptest.NewServer(&rangeServer{data: []byte("first payload")})
	defer first.Close()
	second := httptest.NewServer(&rangeServer{data: []byte("second payload!")})
	defer second.Close()

	dir := t.TempDir()
	d := &HTTPDownloader{}
	jobA := newJob(first.URL+"/a/file.bin", dir, engine.DownloadConfig{})
	jobB := newJob(second.URL+"/b/file.bin", dir, engine.DownloadConfig{})
	// Both are planned before either writes, so both resolve to the same name.
	require.NoError(t, d.BuildJob(jobA))
	require.NoError(t, d.BuildJob(jobB))
	require.Equal(t, jobA.OutputPath, jobB.OutputPath)

	require.NoError(t, d.Download(jobA))
	require.NoError(t, d.Download(jobB))

	assert.Equal(t, filepath.Join(dir, "file.bin"), jobA.OutputPath)
	assert.Equal(t, filepath.Join(dir, "file-(1).bin"), jobB.OutputPath)
	got, err := os.ReadFile(jobA.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "first payload", string(got))
	got, err = os.ReadFile(jobB.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "second payload!", string(got))
}

func TestBuildJobExistingOutput(t *testing.T) {
	data := payload(64)
	server := httptest.NewServer(&rangeServer{data: data})
	defer server.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "out.bin")
	require.NoError(t, os.WriteFile(existing, data, 0644))

	job := newJob(server.URL, dir, engine.DownloadConfig{})
	job.OutputPath = existing
	assert.ErrorIs(t, (&HTTPDownloader{}).BuildJob(job), utils.ErrFileExists)

	require.NoError(t, os.WriteFile(existing, data[:10], 0644))
	job = newJob(server.URL, dir, engine.DownloadConfig{})
	job.OutputPath = existing
	require.NoError(t, (&HTTPDownloader{}).BuildJob(job))
	assert.Equal(t, filepath.Join(dir, "out-(1).bin"), job.OutputPath)
}

func TestValidateJob(t *testing.T) {
	d := &HTTPDownloader{}
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/file", false},
		{"http://example.com", false},
		{"ftp://example.com/file", true},
		{"http:///nohost", true},
		{"::bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := d.ValidateJob(newJob(tt.url, "", engine.DownloadConfig{}))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	err := d.ValidateJob(newJob("https://example.com", "", engine.DownloadConfig{ChunkCount: -1}))
	assert.Equal(t, engine.StageConfig, engine.StageOf(err))
}

func TestFileNameFromHeader(t *testing.T) {
	tests := map[string]string{
		"":                               "",
		`attachment; filename="a b.txt"`: "a b.txt",
		`attachment; filename*=UTF-8''na%C3%AFve.txt`: "na_ve.txt",
		`inline`: "",
		`attachment; filename="../../etc/passwd"`: ".._.._etc_passwd",
	}
	for header, want := range tests {
		assert.Equal(t, want, fileNameFromHeader(header), header)
	}
}
