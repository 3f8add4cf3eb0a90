package utils

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/multiget/internal/engine"
)

func TestResolveOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name      string
		explicit  string
		suggested string
		source    string
		want      string
	}{
		{"explicit wins", "mine.bin", "server.bin", "https://h/url.bin", "mine.bin"},
		{"server suggestion", "", "server.bin", "https://h/url.bin", "server.bin"},
		{"url base", "", "", "https://h/path/url.bin?x=1", "url.bin"},
		{"fallback", "", "", "https://h/", "download"},
		{"no escape", "../../etc/passwd", "", "https://h/", "etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOutputPath(dir, tt.explicit, tt.suggested, tt.source)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.want), got)
		})
	}
}

func TestResolveOutputPathNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), nil, 0644))
	got, err := ResolveOutputPath(dir, "a.bin", "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a-(1).bin"), got)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "report_2024_.pdf", SanitizeFileName("report:2024?.pdf"))
	assert.Equal(t, "a b.txt", SanitizeFileName("  a b.txt "))
}

func TestTrackProgress(t *testing.T) {
	var mu sync.Mutex
	var calls [][2]int64
	job := &MultigetJob{
		Metadata: make(map[string]any),
		ProgressFunc: func(downloaded, total int64) {
			mu.Lock()
			calls = append(calls, [2]int64{downloaded, total})
			mu.Unlock()
		},
	}
	ch, wait := TrackProgress(job, 30)
	for range 3 {
		ch <- engine.ProgressEvent{Delta: 10, Total: 30}
	}
	wait()

	require.NotEmpty(t, calls)
	assert.Equal(t, [2]int64{30, 30}, calls[len(calls)-1])
	seconds, ok := job.Metadata["totalTime"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, seconds, 0.0)
}
