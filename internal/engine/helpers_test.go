package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// memClient serves ranged reads from an in-memory resource.
type memClient struct {
	data     []byte
	hideSize bool
	headErr  error

	// Keyed by segment start byte.
	delays  map[int64]time.Duration
	fail    map[int64]error
	short   map[int64]int64
	blockOn map[int64]bool

	mu        sync.Mutex
	requested []int64
	inFlight  int
	maxFlight int
}

func newMemClient(size int) *memClient {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return &memClient{data: data}
}

func (m *memClient) Head(_ context.Context, _ string) (ResourceInfo, error) {
	if m.headErr != nil {
		return ResourceInfo{}, m.headErr
	}
	if m.hideSize {
		return ResourceInfo{Size: -1}, nil
	}
	return ResourceInfo{Size: int64(len(m.data)), AcceptsRanges: true, FileName: "blob.bin"}, nil
}

func (m *memClient) GetRange(ctx context.Context, _ string, start, end int64) (*RangeResponse, error) {
	m.mu.Lock()
	m.requested = append(m.requested, start)
	m.inFlight++
	m.maxFlight = max(m.maxFlight, m.inFlight)
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.blockOn[start] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d, ok := m.delays[start]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := m.fail[start]; ok {
		return nil, err
	}
	if start >= int64(len(m.data)) {
		return &RangeResponse{StatusCode: http.StatusRequestedRangeNotSatisfiable, ContentLength: 0, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}
	end = min(end, int64(len(m.data))-1)
	body := m.data[start : end+1]
	if n, ok := m.short[start]; ok {
		body = body[:n]
	}
	return &RangeResponse{
		StatusCode:    http.StatusPartialContent,
		ContentLength: -1,
		ContentRange:  fmt.Sprintf("bytes %d-%d/%d", start, end, len(m.data)),
		Body:          io.NopCloser(bytes.NewReader(body)),
	}, nil
}

// drain collects progress events until the channel is closed.
func drain(ch <-chan ProgressEvent) <-chan int64 {
	out := make(chan int64, 1)
	go func() {
		var total int64
		for ev := range ch {
			total += ev.Delta
		}
		out <- total
	}()
	return out
}

var errBoom = errors.New("boom")

// run prepares and executes a download in one call.
func run(ctx context.Context, client RangeClient, cfg DownloadConfig, dest string, opts Options, progress chan<- ProgressEvent) (Result, error) {
	p, err := Prepare(ctx, client, cfg)
	if err != nil {
		return Result{}, err
	}
	return Execute(ctx, client, p, dest, opts, progress)
}
