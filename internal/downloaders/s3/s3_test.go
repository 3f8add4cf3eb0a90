package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/utils"
)

type fakeObjects struct {
	mu        sync.Mutex
	data      []byte
	headErr   error
	fullBody  bool
	lastRange string
}

func (f *fakeObjects) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.data)))}, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	f.lastRange = aws.ToString(params.Range)
	f.mu.Unlock()
	if f.fullBody {
		return &s3.GetObjectOutput{
			ContentLength: aws.Int64(int64(len(f.data))),
			Body:          io.NopCloser(bytes.NewReader(f.data)),
		}, nil
	}
	var start, end int64
	if _, err := fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	end = min(end, int64(len(f.data))-1)
	return &s3.GetObjectOutput{
		ContentLength: aws.Int64(end - start + 1),
		ContentRange:  aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, len(f.data))),
		Body:          io.NopCloser(bytes.NewReader(f.data[start : end+1])),
	}, nil
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://bucket/path/to/file.bin", "bucket", "path/to/file.bin", false},
		{"s3://bucket/file", "bucket", "file", false},
		{"s3://bucket", "", "", true},
		{"s3://bucket/folder/", "", "", true},
		{"s3:///key", "", "", true},
		{"https://bucket/key", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, key, err := parseS3URL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestHead(t *testing.T) {
	client := &S3Client{client: &fakeObjects{data: make([]byte, 42)}}
	info, err := client.Head(t.Context(), "s3://bucket/dir/archive.tar")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, "archive.tar", info.FileName)

	client = &S3Client{client: &fakeObjects{headErr: errors.New("forbidden")}}
	_, err = client.Head(t.Context(), "s3://bucket/key")
	assert.ErrorContains(t, err, "forbidden")
}

func TestGetRangeStatus(t *testing.T) {
	fake := &fakeObjects{data: []byte("0123456789")}
	client := &S3Client{client: fake}

	resp, err := client.GetRange(t.Context(), "s3://bucket/key", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "bytes=2-5", fake.lastRange)
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, int64(4), resp.ContentLength)
	assert.Equal(t, "bytes 2-5/10", resp.ContentRange)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(body))

	fake.fullBody = true
	resp, err = client.GetRange(t.Context(), "s3://bucket/key", 0, 9)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(10), resp.ContentLength)
	assert.Empty(t, resp.ContentRange)
}

func TestEngineOverS3(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	client := &S3Client{client: &fakeObjects{data: data}}
	dir := t.TempDir()
	job := &utils.MultigetJob{
		ID:        "s3",
		JobType:   "s3",
		URL:       "s3://bucket/blob",
		OutputDir: dir,
		Overrides: engine.DownloadConfig{ChunkCount: 3},
		Metadata:  make(map[string]any),
	}

	require.NoError(t, utils.PrepareJob(t.Context(), job, client))
	require.NoError(t, utils.ExecuteJob(t.Context(), job, client))
	assert.Equal(t, filepath.Join(dir, "blob"), job.OutputPath)
	assert.Equal(t, int64(len(data)), job.Metadata["bytesWritten"])
	got, err := os.ReadFile(job.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
