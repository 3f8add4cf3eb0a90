package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns a fixed response for every range request.
type stubClient struct {
	status       int
	length       int64
	contentRange string
	body         []byte
	err          error
}

func (s stubClient) Head(context.Context, string) (ResourceInfo, error) {
	return ResourceInfo{Size: int64(len(s.body))}, nil
}

func (s stubClient) GetRange(context.Context, string, int64, int64) (*RangeResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &RangeResponse{StatusCode: s.status, ContentLength: s.length, ContentRange: s.contentRange, Body: io.NopCloser(bytes.NewReader(s.body))}, nil
}

func TestFetchSegmentExactRange(t *testing.T) {
	client := newMemClient(200_000)
	seg := Segment{Index: 1, Start: 50_000, End: 149_999}
	progress := make(chan ProgressEvent, 64)
	totalCh := drain(progress)

	payload, err := FetchSegment(context.Background(), client, "mem://", seg, 200_000, progress)
	close(progress)
	require.NoError(t, err)
	assert.Equal(t, client.data[50_000:150_000], payload)
	assert.Equal(t, int64(100_000), <-totalCh)
}

func TestFetchSegmentProgressIsIncremental(t *testing.T) {
	client := newMemClient(4 * readBufferSize)
	progress := make(chan ProgressEvent, 64)
	_, err := FetchSegment(context.Background(), client, "mem://", Segment{Start: 0, End: 4*readBufferSize - 1}, 4*readBufferSize, progress)
	require.NoError(t, err)
	close(progress)

	var events int
	for ev := range progress {
		events++
		assert.Equal(t, int64(4*readBufferSize), ev.Total)
		assert.Positive(t, ev.Delta)
	}
	assert.Greater(t, events, 1)
}

func TestFetchSegmentShortBody(t *testing.T) {
	client := newMemClient(1000)
	client.short = map[int64]int64{500: 100}

	_, err := FetchSegment(context.Background(), client, "mem://", Segment{Index: 1, Start: 500, End: 999}, 1000, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Segment.Index)
}

func TestFetchSegmentLongBody(t *testing.T) {
	client := stubClient{status: http.StatusPartialContent, length: -1, body: make([]byte, 11)}
	_, err := FetchSegment(context.Background(), client, "mem://", Segment{Start: 0, End: 9}, 10, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestFetchSegmentDeclaredLengthMismatch(t *testing.T) {
	client := stubClient{status: http.StatusPartialContent, length: 5, body: make([]byte, 5)}
	_, err := FetchSegment(context.Background(), client, "mem://", Segment{Start: 0, End: 9}, 10, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestFetchSegmentStatus(t *testing.T) {
	tests := []struct {
		name   string
		client stubClient
		seg    Segment
		ok     bool
	}{
		{"partial content", stubClient{status: http.StatusPartialContent, length: 10, body: make([]byte, 10)}, Segment{Start: 10, End: 19}, true},
		{"full body equals first range", stubClient{status: http.StatusOK, length: 10, body: make([]byte, 10)}, Segment{Start: 0, End: 9}, true},
		{"full body for later range", stubClient{status: http.StatusOK, length: 10, body: make([]byte, 10)}, Segment{Start: 10, End: 19}, false},
		{"full body larger than range", stubClient{status: http.StatusOK, length: 100, body: make([]byte, 100)}, Segment{Start: 0, End: 9}, false},
		{"server error", stubClient{status: http.StatusInternalServerError, length: 0}, Segment{Start: 0, End: 9}, false},
		{"not found", stubClient{status: http.StatusNotFound, length: 0}, Segment{Start: 0, End: 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FetchSegment(context.Background(), tt.client, "mem://", tt.seg, 20, nil)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnexpectedStatus)
			}
		})
	}
}

func TestFetchSegmentContentRange(t *testing.T) {
	seg := Segment{Start: 10, End: 19}
	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"absent", "", true},
		{"matching", "bytes 10-19/100", true},
		{"unknown total", "bytes 10-19/*", true},
		{"shifted", "bytes 0-9/100", false},
		{"shorter end", "bytes 10-18/100", false},
		{"wrong unit", "items 10-19/100", false},
		{"garbage", "bytes ten-19/100", false},
		{"no total", "bytes 10-19", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := stubClient{status: http.StatusPartialContent, length: 10, contentRange: tt.header, body: make([]byte, 10)}
			_, err := FetchSegment(context.Background(), client, "mem://", seg, 100, nil)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrRangeMismatch)
			}
		})
	}
}

func TestFetchSegmentTransportError(t *testing.T) {
	_, err := FetchSegment(context.Background(), stubClient{err: errBoom}, "mem://", Segment{Start: 0, End: 9}, 10, nil)
	assert.ErrorIs(t, err, errBoom)
}
