package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vamp-go/vamp-go/internal/config"
)

var (
	cfgFile string

	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "vamp-server",
	Short: "Masked token generation server",
	Long: `vamp-server builds generation masks over codec token grids and runs
vamp, extend and loop generations against a model backend.

Start the server:
  vamp-server

Start with custom settings:
  vamp-server --listen 0.0.0.0:8080 --backend http://localhost:8081 --workers 2

Use environment variables:
  VAMP_LISTEN=0.0.0.0:8080 VAMP_BACKEND=http://localhost:8081 vamp-server`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vamp-server %s\n", Version)
		fmt.Printf("  Commit:     %s\n", Commit)
		fmt.Printf("  Build Date: %s\n", BuildDate)
	},
}

// bindings maps viper keys to command line flags.
var bindings = []struct {
	key  string
	flag string
	env  string
}{
	{"server.listen", "listen", "VAMP_LISTEN"},
	{"server.read_timeout", "read-timeout", "VAMP_READ_TIMEOUT"},
	{"server.write_timeout", "write-timeout", "VAMP_WRITE_TIMEOUT"},
	{"backend.url", "backend", "VAMP_BACKEND"},
	{"backend.timeout", "backend-timeout", "VAMP_BACKEND_TIMEOUT"},
	{"backend.max_connections", "backend-max-connections", "VAMP_BACKEND_MAX_CONNECTIONS"},
	{"auth.api_key", "api-key", "VAMP_API_KEY"},
	{"limits.max_upload_bytes", "max-upload-bytes", "VAMP_MAX_UPLOAD_BYTES"},
	{"limits.max_passes", "max-passes", "VAMP_MAX_PASSES"},
	{"limits.max_preview_cells", "max-preview-cells", "VAMP_MAX_PREVIEW_CELLS"},
	{"generation.workers", "workers", "VAMP_WORKERS"},
	{"generation.max_queue", "max-queue", "VAMP_MAX_QUEUE"},
	{"generation.coarse_codebooks", "coarse-codebooks", "VAMP_COARSE_CODEBOOKS"},
	{"generation.request_timeout", "request-timeout", "VAMP_REQUEST_TIMEOUT"},
	{"models.conf_dir", "models-dir", "VAMP_MODELS_DIR"},
	{"models.default", "default-model", "VAMP_DEFAULT_MODEL"},
	{"logging.level", "log-level", "VAMP_LOG_LEVEL"},
	{"logging.format", "log-format", "VAMP_LOG_FORMAT"},
	{"metrics.enabled", "metrics", "VAMP_METRICS"},
	{"metrics.path", "metrics-path", "VAMP_METRICS_PATH"},
	{"tracing.exporter", "trace-exporter", "VAMP_TRACE_EXPORTER"},
	{"tracing.endpoint", "trace-endpoint", "VAMP_TRACE_ENDPOINT"},
	{"tracing.insecure", "trace-insecure", "VAMP_TRACE_INSECURE"},
	{"tracing.sample_ratio", "trace-sample-ratio", "VAMP_TRACE_SAMPLE_RATIO"},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.Default()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.Flags().String("listen", defaults.Server.Listen, "Server listen address")
	rootCmd.Flags().Duration("read-timeout", defaults.Server.ReadTimeout, "HTTP read timeout")
	rootCmd.Flags().Duration("write-timeout", defaults.Server.WriteTimeout, "HTTP write timeout")

	rootCmd.Flags().String("backend", defaults.Backend.URL, "Model backend URL")
	rootCmd.Flags().Duration("backend-timeout", defaults.Backend.Timeout, "Backend request timeout")
	rootCmd.Flags().Int("backend-max-connections", defaults.Backend.MaxConnections, "Backend connection pool size")

	rootCmd.Flags().String("api-key", "", "API key for authentication (empty = no auth)")
	rootCmd.Flags().Int64("max-upload-bytes", defaults.Limits.MaxUploadBytes, "Maximum request body size")
	rootCmd.Flags().Int("max-passes", defaults.Limits.MaxPasses, "Maximum generation passes per request")
	rootCmd.Flags().Int("max-preview-cells", defaults.Limits.MaxPreviewCells, "Maximum codebooks*steps of a mask preview")

	rootCmd.Flags().Int("workers", defaults.Generation.Workers, "Concurrent generations")
	rootCmd.Flags().Int("max-queue", defaults.Generation.MaxQueue, "Generations allowed to wait for a worker")
	rootCmd.Flags().Int("coarse-codebooks", defaults.Generation.CoarseCodebooks, "Codebooks kept by the refinement pass")
	rootCmd.Flags().Duration("request-timeout", defaults.Generation.RequestTimeout, "Deadline for one generation request")

	rootCmd.Flags().String("models-dir", defaults.Models.ConfDir, "Directory holding <name>/interface.yml model configs")
	rootCmd.Flags().String("default-model", defaults.Models.Default, "Model used when a request names none")

	rootCmd.Flags().String("log-level", defaults.Logging.Level, "Log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", defaults.Logging.Format, "Log format (json, text)")

	rootCmd.Flags().Bool("metrics", defaults.Metrics.Enabled, "Expose Prometheus metrics")
	rootCmd.Flags().String("metrics-path", defaults.Metrics.Path, "Prometheus metrics path")

	rootCmd.Flags().String("trace-exporter", defaults.Tracing.Exporter, "Span exporter (none, stdout, otlp)")
	rootCmd.Flags().String("trace-endpoint", defaults.Tracing.Endpoint, "OTLP gRPC collector address")
	rootCmd.Flags().Bool("trace-insecure", defaults.Tracing.Insecure, "Disable TLS to the OTLP collector")
	rootCmd.Flags().Float64("trace-sample-ratio", defaults.Tracing.SampleRatio, "Fraction of root spans sampled")

	bindFlags()

	rootCmd.AddCommand(versionCmd)
}

func bindFlags() {
	for _, b := range bindings {
		flag := rootCmd.Flags().Lookup(b.flag)
		if flag == nil {
			continue
		}
		_ = viper.BindPFlag(b.key, flag)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VAMP")
	viper.AutomaticEnv()

	for _, b := range bindings {
		_ = viper.BindEnv(b.key, b.env)
	}

	setDefaults(config.Default())
	bindFlags()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setDefaults(d *config.Config) {
	viper.SetDefault("server.listen", d.Server.Listen)
	viper.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	viper.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	viper.SetDefault("backend.url", d.Backend.URL)
	viper.SetDefault("backend.timeout", d.Backend.Timeout)
	viper.SetDefault("backend.max_connections", d.Backend.MaxConnections)
	viper.SetDefault("auth.api_key", d.Auth.APIKey)
	viper.SetDefault("limits.max_upload_bytes", d.Limits.MaxUploadBytes)
	viper.SetDefault("limits.max_passes", d.Limits.MaxPasses)
	viper.SetDefault("limits.max_preview_cells", d.Limits.MaxPreviewCells)
	viper.SetDefault("generation.workers", d.Generation.Workers)
	viper.SetDefault("generation.max_queue", d.Generation.MaxQueue)
	viper.SetDefault("generation.coarse_codebooks", d.Generation.CoarseCodebooks)
	viper.SetDefault("generation.request_timeout", d.Generation.RequestTimeout)
	viper.SetDefault("models.conf_dir", d.Models.ConfDir)
	viper.SetDefault("models.default", d.Models.Default)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
	viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
	viper.SetDefault("metrics.path", d.Metrics.Path)
	viper.SetDefault("tracing.exporter", d.Tracing.Exporter)
	viper.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	viper.SetDefault("tracing.insecure", d.Tracing.Insecure)
	viper.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
