package s3

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tanq16/multiget/internal/engine"
)

type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Client serves byte ranges of a single bucket/key source.
type S3Client struct {
	client objectAPI
}

func getS3Client(ctx context.Context, profile string) (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMode("adaptive")}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return &S3Client{client: s3.NewFromConfig(cfg)}, nil
}

func (c *S3Client) Head(ctx context.Context, source string) (engine.ResourceInfo, error) {
	bucket, key, err := parseS3URL(source)
	if err != nil {
		return engine.ResourceInfo{}, err
	}
	headObj, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return engine.ResourceInfo{}, fmt.Errorf("error accessing S3 object: %v", err)
	}
	size := int64(-1)
	if headObj.ContentLength != nil {
		size = *headObj.ContentLength
	}
	return engine.ResourceInfo{
		Size:          size,
		FileName:      path.Base(key),
		AcceptsRanges: true,
	}, nil
}

func (c *S3Client) GetRange(ctx context.Context, source string, start, end int64) (*engine.RangeResponse, error) {
	bucket, key, err := parseS3URL(source)
	if err != nil {
		return nil, err
	}
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting object: %v", err)
	}
	resp := &engine.RangeResponse{
		StatusCode:    http.StatusOK,
		ContentLength: -1,
		ContentRange:  aws.ToString(result.ContentRange),
		Body:          result.Body,
	}
	if resp.ContentRange != "" {
		resp.StatusCode = http.StatusPartialContent
	}
	if result.ContentLength != nil {
		resp.ContentLength = *result.ContentLength
	}
	return resp, nil
}

func parseS3URL(url string) (string, string, error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL format: %s", url)
	}
	url = strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(url, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URL format: missing bucket")
	}
	if len(parts) < 2 || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("invalid S3 URL format: missing object key")
	}
	return parts[0], parts[1], nil
}
