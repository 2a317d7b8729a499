package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// filesystem backs manifest reads and metrics writes. Paths passed to it are
// absolute.
var filesystem fs.Filesystem = billy.NewOSFS("/")

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the copies listed in a manifest",
	Long: `Run the copies listed in a YAML or JSON manifest and print the result
as JSON.

Example manifest:

  items:
    - source: {bucket: logs, key: 2024/}
  defaults:
    targetBucket: archive
    targetKeyTemplate: logs/${Key}
    storageClass: GLACIER_IR

Example:
  s3copy run --manifest copy.yaml --parallel 16
  cat copy.json | s3copy run --manifest -`,
	RunE: runManifest,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringP("manifest", "m", "", "manifest file, or - for stdin")
	f.Int("parallel", s3copy.DefaultParallel, "objects copied at once")
	f.Bool("fail-stop", false, "stop at the first failed object")
	f.Int("max-fail-limit", -1, "cancel once more objects failed (-1 means no limit)")
	f.Int32("list-page-size", 1000, "keys per listing page")
	f.Int64("chunk-size", 0, "multipart threshold for copies that change placement (0 means 5GiB)")
	f.Int64("part-size", 0, "multipart part size in bytes (0 means 8MiB)")
	f.Int("part-concurrency", 0, "parts of one object copied at once (0 means 5)")
	f.Bool("detect-content-type", false, "fill a missing Content-Type from the object content")
	f.String("metrics-file", "", "write Prometheus metrics in text format to this file when done")
	_ = runCmd.MarkFlagRequired("manifest")

	for _, name := range []string{
		"parallel", "fail-stop", "max-fail-limit", "list-page-size", "chunk-size",
		"part-size", "part-concurrency", "detect-content-type", "metrics-file",
	} {
		_ = viper.BindPFlag(name, f.Lookup(name))
	}
}

func runManifest(cmd *cobra.Command, _ []string) error {
	manifest, _ := cmd.Flags().GetString("manifest")
	if manifest != "-" {
		abs, err := filepath.Abs(manifest)
		if err != nil {
			return fmt.Errorf("failed to resolve manifest path: %w", err)
		}
		manifest = abs
	}
	req, err := loadManifest(filesystem, manifest, cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger, err := loggerFromConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := clientFromConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	reg := prometheus.NewRegistry()
	o := s3copy.New(client, append(orchestratorOptions(), s3copy.WithLogger(logger), s3copy.WithMetrics(reg))...)

	resp, err := o.Run(ctx, req)
	if err != nil {
		return err
	}

	if path := viper.GetString("metrics-file"); path != "" {
		abs, err := filepath.Abs(path)
		if err == nil {
			err = writeMetrics(filesystem, abs, reg)
		}
		if err != nil {
			logger.Warn("failed to write metrics", "path", path, "error", err)
		}
	}

	if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	for _, r := range resp.Results {
		if r.Error != "" {
			return fmt.Errorf("copy ended early: %s", r.Error)
		}
		if r.Result.Fail > 0 {
			return fmt.Errorf("%d object(s) failed", r.Result.Fail)
		}
	}
	return nil
}

func orchestratorOptions() []s3types.Option {
	return []s3types.Option{
		s3copy.WithParallel(viper.GetInt("parallel")),
		s3copy.WithFailStop(viper.GetBool("fail-stop")),
		s3copy.WithMaxFailLimit(viper.GetInt("max-fail-limit")),
		s3copy.WithListPageSize(viper.GetInt32("list-page-size")),
		s3copy.WithChunkSize(viper.GetInt64("chunk-size")),
		s3copy.WithPartSize(viper.GetInt64("part-size")),
		s3copy.WithPartConcurrency(viper.GetInt("part-concurrency")),
		s3copy.WithDetectContentType(viper.GetBool("detect-content-type")),
	}
}

// loadManifest decodes a copy request from path on fsys, or from stdin when
// path is "-". JSON manifests are accepted as YAML. Unknown fields are
// rejected.
func loadManifest(fsys fs.Filesystem, path string, stdin io.Reader) (*s3types.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = fsys.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var req s3types.Request
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("manifest %s is empty", path)
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &req, nil
}

// writeMetrics writes every metric gathered from g to path on fsys in the
// Prometheus text format, creating parent directories as needed.
func writeMetrics(fsys fs.Filesystem, path string, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
