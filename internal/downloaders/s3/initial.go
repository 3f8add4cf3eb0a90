package s3

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/multiget/internal/utils"
)

type S3Downloader struct{}

func (d *S3Downloader) ValidateJob(job *utils.MultigetJob) error {
	bucket, key, err := parseS3URL(job.URL)
	if err != nil {
		return err
	}
	if err := job.Config().Validate(); err != nil {
		return err
	}
	job.Metadata["bucket"] = bucket
	job.Metadata["key"] = key
	log.Info().Str("op", "s3/initial").Msgf("job validated for s3://%s/%s", bucket, key)
	return nil
}

func (d *S3Downloader) BuildJob(job *utils.MultigetJob) error {
	ctx := context.Background()
	client, err := clientFor(ctx, job)
	if err != nil {
		return err
	}
	return utils.PrepareJob(ctx, job, client)
}

func (d *S3Downloader) Download(job *utils.MultigetJob) error {
	ctx := context.Background()
	client, err := clientFor(ctx, job)
	if err != nil {
		return err
	}
	return utils.ExecuteJob(ctx, job, client)
}

func clientFor(ctx context.Context, job *utils.MultigetJob) (*S3Client, error) {
	profile, _ := job.Metadata["profile"].(string)
	client, err := getS3Client(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("error creating S3 client: %v", err)
	}
	return client, nil
}
