package multigethttp

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/utils"
)

// rangeClient adapts an HTTP client to the engine's RangeClient.
type rangeClient struct {
	doer utils.HTTPDoer
}

func newRangeClient(doer utils.HTTPDoer) *rangeClient {
	return &rangeClient{doer: doer}
}

func (c *rangeClient) Head(ctx context.Context, source string) (engine.ResourceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, source, nil)
	if err != nil {
		return engine.ResourceInfo{}, fmt.Errorf("error creating HEAD request: %w", err)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return engine.ResourceInfo{}, fmt.Errorf("error executing HEAD request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return engine.ResourceInfo{}, fmt.Errorf("server returned error: %d", resp.StatusCode)
	}
	return engine.ResourceInfo{
		Size:          resp.ContentLength,
		FileName:      fileNameFromHeader(resp.Header.Get("Content-Disposition")),
		AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

func (c *rangeClient) GetRange(ctx context.Context, source string, start, end int64) (*engine.RangeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GET request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	req.Header.Set("Connection", "keep-alive")
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error executing GET request: %w", err)
	}
	return &engine.RangeResponse{
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		Body:          resp.Body,
	}, nil
}

func fileNameFromHeader(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return utils.SanitizeFileName(fn)
	}
	// mime decodes RFC 5987 values itself; this covers servers that send a
	// raw filename* the parser leaves alone.
	if fn, ok := params["filename*"]; ok && strings.HasPrefix(fn, "UTF-8''") {
		unescaped, err := url.PathUnescape(strings.TrimPrefix(fn, "UTF-8''"))
		if err == nil {
			return utils.SanitizeFileName(unescaped)
		}
	}
	return ""
}
