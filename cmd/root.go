package cmd

import (
	"context"
	"fmt"
	"net/http"
	u "net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tanq16/multiget/internal/config"
	"github.com/tanq16/multiget/internal/engine"
	"github.com/tanq16/multiget/internal/metrics"
	"github.com/tanq16/multiget/internal/output"
	"github.com/tanq16/multiget/internal/scheduler"
	"github.com/tanq16/multiget/internal/utils"
)

var (
	outputName    string
	outputDir     string
	chunks        int
	chunkSize     int64
	limit         int64
	maxConcurrent int
	fetchTimeout  time.Duration
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	token         string
	headers       []string
	s3Profile     string
	workers       int
	configPath    string
	debug         bool
	logFile       string
	metricsAddr   string
)

// settings is the merged view of defaults, config file, env and flags.
var settings config.Config

var metricsServer *http.Server

var MultigetVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "multiget [URL]",
	Short: "multiget downloads a resource as concurrent byte ranges",
	Long: `multiget splits a remote resource into byte-range segments, fetches them
concurrently and reassembles them into a single file.

Examples:
  multiget https://example.com/archive.tar.gz
  multiget https://example.com/big.iso -n 8 -s 4 -l 512
  multiget s3://bucket/path/to/object --profile work`,
	Version:           MultigetVersion,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			metricsServer.Shutdown(ctx)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		job := newJob(args[0], outputName)
		if err := scheduler.Run([]utils.MultigetJob{job}, 1); err != nil {
			output.PrintError(fmt.Sprintf("Download failed: %v", err))
			os.Exit(1)
		}
		output.PrintSuccess("Download complete")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputDir, "dir", utils.DefaultOutputDir, "Directory the artifact is written to")
	rootCmd.PersistentFlags().IntVarP(&chunks, "chunks", "n", 0, "Number of byte-range segments (default 4)")
	rootCmd.PersistentFlags().Int64VarP(&chunkSize, "chunk-size", "s", 0, "Segment size in MiB (default 1)")
	rootCmd.PersistentFlags().Int64VarP(&limit, "limit", "l", 0, "Download at most this many MiB (default 4)")
	rootCmd.PersistentFlags().IntVar(&maxConcurrent, "max-concurrent", 0, "Cap on in-flight segment fetches (0 means one per segment)")
	rootCmd.PersistentFlags().DurationVar(&fetchTimeout, "fetch-timeout", 0, "Timeout for each segment fetch (eg. 30s)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Connection timeout (eg. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token sent with every request")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.PersistentFlags().StringVar(&s3Profile, "profile", "default", "AWS profile for s3:// sources")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/multiget/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotated file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (eg. :9090)")
	rootCmd.Flags().StringVarP(&outputName, "output", "o", "", "Output file name (inferred from the server or URL if not provided)")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newPlanCmd())
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), &loaded); err != nil {
		return err
	}
	settings = loaded
	utils.InitLogger(debug, settings.LogFile)
	if settings.MetricsAddr != "" {
		metricsServer = metrics.Serve(settings.MetricsAddr)
	}
	log.Debug().Str("op", "cmd/root").Str("dir", settings.OutputDir).Int("chunks", settings.Chunks).
		Int64("limit", settings.LimitMiB).Msg("Settings resolved")
	return nil
}

// applyFlags overlays flags the user actually set. An explicitly given zero
// for a sizing flag is rejected rather than read as "use the default".
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("chunks") && chunks <= 0 {
		return engine.ConfigError(fmt.Errorf("%w: --chunks %d", engine.ErrInvalidOverride, chunks))
	}
	if flags.Changed("chunk-size") && chunkSize <= 0 {
		return engine.ConfigError(fmt.Errorf("%w: --chunk-size %d", engine.ErrInvalidOverride, chunkSize))
	}
	if flags.Changed("limit") && limit <= 0 {
		return engine.ConfigError(fmt.Errorf("%w: --limit %d", engine.ErrInvalidOverride, limit))
	}
	if flags.Changed("dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("chunks") {
		cfg.Chunks = chunks
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSizeMiB = chunkSize
	}
	if flags.Changed("limit") {
		cfg.LimitMiB = limit
	}
	if flags.Changed("max-concurrent") {
		cfg.MaxConcurrent = maxConcurrent
	}
	if flags.Changed("fetch-timeout") {
		cfg.FetchTimeout = fetchTimeout
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("keep-alive-timeout") {
		cfg.KeepAlive = kaTimeout
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	if flags.Changed("proxy") {
		cfg.Proxy = proxyURL
	}
	if flags.Changed("token") {
		cfg.Token = token
	}
	if flags.Changed("header") {
		cfg.Headers = append(cfg.Headers, headers...)
	}
	if flags.Changed("profile") {
		cfg.S3Profile = s3Profile
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	return cfg.Validate()
}

func httpClientConfig(cfg config.Config) utils.HTTPClientConfig {
	agent := cfg.UserAgent
	if agent == "randomize" {
		agent = utils.GetRandomUserAgent()
	}
	proxy, user, pass := cfg.Proxy, proxyUsername, proxyPassword
	// Credentials embedded in the proxy URL win over empty flags
	parsedProxy, err := u.Parse(proxy)
	if err == nil && parsedProxy.User != nil && user == "" {
		user = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			pass = password
		}
		parsedProxy.User = nil
		proxy = parsedProxy.String()
	}
	return utils.HTTPClientConfig{
		Timeout:       cfg.Timeout,
		KATimeout:     cfg.KeepAlive,
		ProxyURL:      proxy,
		ProxyUsername: user,
		ProxyPassword: pass,
		UserAgent:     agent,
		BearerToken:   cfg.Token,
		Headers:       utils.ParseHeaderArgs(cfg.Headers),
	}
}

func jobType(url string) string {
	if strings.HasPrefix(url, "s3://") {
		return "s3"
	}
	return "http"
}

func newJob(url, name string) utils.MultigetJob {
	job := utils.MultigetJob{
		JobType:   jobType(url),
		URL:       url,
		OutputDir: settings.OutputDir,
		Overrides: engine.DownloadConfig{
			OutputName:   name,
			ChunkCount:   settings.Chunks,
			ChunkSizeMiB: settings.ChunkSizeMiB,
			LimitMiB:     settings.LimitMiB,
		},
		Options: engine.Options{
			MaxConcurrent: settings.MaxConcurrent,
			FetchTimeout:  settings.FetchTimeout,
		},
		HTTPClientConfig: httpClientConfig(settings),
		Metadata:         make(map[string]any),
	}
	if job.JobType == "s3" {
		job.Metadata["profile"] = settings.S3Profile
	}
	return job
}
