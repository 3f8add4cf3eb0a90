package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/output"
	"github.com/tanq16/multiget/internal/scheduler"
	"github.com/tanq16/multiget/internal/utils"
	"gopkg.in/yaml.v3"
)

// BatchEntry overrides are pointers so an explicit zero can be told apart
// from an omitted key.
type BatchEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	Link       string `yaml:"link"`
	Chunks     *int   `yaml:"chunks,omitempty"`
	ChunkSize  *int64 `yaml:"chunk_size,omitempty"`
	Limit      *int64 `yaml:"limit,omitempty"`
}

type BatchFile map[string][]BatchEntry

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Process multiple downloads from a YAML file",
		Long: `Process multiple downloads from a YAML file grouped by source type.

Example file:
  http:
    - link: https://example.com/a.iso
      op: images/a.iso
      chunks: 8
      limit: 256
  s3:
    - link: s3://bucket/key`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading YAML file: %v", err))
				os.Exit(1)
			}
			var batchFile BatchFile
			if err := yaml.Unmarshal(data, &batchFile); err != nil {
				output.PrintError(fmt.Sprintf("Error parsing YAML file: %v", err))
				os.Exit(1)
			}
			jobs, err := buildJobsFromBatch(batchFile)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			if len(jobs) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			if err := scheduler.Run(jobs, settings.Workers); err != nil {
				output.PrintError("Encountered failed download(s)")
				os.Exit(1)
			}
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of downloads to run in parallel")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("workers") && workers > 0 {
			settings.Workers = workers
		}
	}
	return cmd
}

func buildJobsFromBatch(batchFile BatchFile) ([]utils.MultigetJob, error) {
	types := make([]string, 0, len(batchFile))
	for jobType := range batchFile {
		types = append(types, jobType)
	}
	sort.Strings(types)

	var jobs []utils.MultigetJob
	for _, rawType := range types {
		normalizedType := normalizeJobType(rawType)
		if normalizedType == "" {
			fmt.Fprintf(os.Stderr, "Warning: Unknown job type '%s', skipping...\n", rawType)
			continue
		}
		for i, entry := range batchFile[rawType] {
			if entry.Link == "" {
				fmt.Fprintf(os.Stderr, "Warning: Empty link found in %s section, skipping...\n", rawType)
				continue
			}
			job := newJob(entry.Link, "")
			job.JobType = normalizedType
			job.OutputPath = entry.OutputPath
			if err := applyEntryOverrides(&job, entry); err != nil {
				return nil, fmt.Errorf("%s entry %d: %w", rawType, i+1, err)
			}
			if normalizedType == "s3" {
				job.Metadata["profile"] = settings.S3Profile
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func applyEntryOverrides(job *utils.MultigetJob, entry BatchEntry) error {
	if entry.Chunks != nil {
		if *entry.Chunks <= 0 {
			return engine.ConfigError(fmt.Errorf("%w: chunks %d", engine.ErrInvalidOverride, *entry.Chunks))
		}
		job.Overrides.ChunkCount = *entry.Chunks
	}
	if entry.ChunkSize != nil {
		if *entry.ChunkSize <= 0 {
			return engine.ConfigError(fmt.Errorf("%w: chunk_size %d", engine.ErrInvalidOverride, *entry.ChunkSize))
		}
		job.Overrides.ChunkSizeMiB = *entry.ChunkSize
	}
	if entry.Limit != nil {
		if *entry.Limit <= 0 {
			return engine.ConfigError(fmt.Errorf("%w: limit %d", engine.ErrInvalidOverride, *entry.Limit))
		}
		job.Overrides.LimitMiB = *entry.Limit
	}
	return nil
}

func normalizeJobType(jobType string) string {
	switch strings.ToLower(jobType) {
	case "http", "https":
		return "http"
	case "s3":
		return "s3"
	}
	return ""
}
