package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

const envPrefix = "S3COPY"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "s3copy",
	Short: "Server-side bulk copy of S3 objects and prefixes",
	Long: `s3copy copies objects and whole prefixes between S3 buckets, regions
and storage classes without downloading them.

Every flag can also be set in the config file or through an S3COPY_*
environment variable, for example S3COPY_REGION or S3COPY_FAIL_STOP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.s3copy.yaml)")
	rootCmd.PersistentFlags().String("region", "", "AWS region (defaults to the credential chain)")
	rootCmd.PersistentFlags().String("endpoint", "", "custom S3 endpoint URL")
	rootCmd.PersistentFlags().Bool("path-style", false, "use path-style bucket addressing")
	rootCmd.PersistentFlags().Int("max-retries", 3, "maximum attempts per S3 request")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout (0 means none)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")

	for _, name := range []string{"region", "endpoint", "path-style", "max-retries", "timeout", "log-format", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".s3copy")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger. Logs go to w so stdout stays
// reserved for command output.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: want text or json", format)
	}
}

func loggerFromConfig() (*slog.Logger, error) {
	return newLogger(os.Stderr, viper.GetString("log-format"), viper.GetString("log-level"))
}

func clientFromConfig(ctx context.Context) (*s3.Client, error) {
	opts := []s3types.ClientOption{
		s3copy.WithForcePathStyle(viper.GetBool("path-style")),
		s3copy.WithMaxRetries(viper.GetInt("max-retries")),
	}
	if region := viper.GetString("region"); region != "" {
		opts = append(opts, s3copy.WithRegion(region))
	}
	if endpoint := viper.GetString("endpoint"); endpoint != "" {
		opts = append(opts, s3copy.WithEndpoint(endpoint))
	}
	if d := viper.GetDuration("timeout"); d > time.Duration(0) {
		opts = append(opts, s3copy.WithTimeout(d))
	}
	return s3copy.NewClient(ctx, opts...)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
