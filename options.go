package s3copy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// WithParallel sets how many objects are copied at once.
// Default is 5. Values below 1 are ignored.
func WithParallel(n int) s3types.Option {
	return func(c *s3types.Config) {
		if n > 0 {
			c.Parallel = n
		}
	}
}

// WithFailStop ends the run at the first failed object.
func WithFailStop(failStop bool) s3types.Option {
	return func(c *s3types.Config) {
		c.FailStop = failStop
	}
}

// WithMaxFailLimit cancels the run once more than limit objects failed.
// A negative limit, the default, means no limit.
func WithMaxFailLimit(limit int) s3types.Option {
	return func(c *s3types.Config) {
		c.MaxFailLimit = limit
	}
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithInterceptor adds an interceptor that sees every copy before it is
// issued. Interceptors run in the order they were added.
func WithInterceptor(interceptor s3types.Interceptor) s3types.Option {
	return func(c *s3types.Config) {
		if interceptor != nil {
			c.Interceptors = append(c.Interceptors, interceptor)
		}
	}
}

// WithMetrics registers run metrics with reg.
func WithMetrics(reg prometheus.Registerer) s3types.Option {
	return func(c *s3types.Config) {
		c.Registerer = reg
	}
}

// WithListPageSize sets how many keys one listing page returns.
// Default is 1000, the S3 maximum.
func WithListPageSize(size int32) s3types.Option {
	return func(c *s3types.Config) {
		if size > 0 {
			c.ListPageSize = size
		}
	}
}

// WithChunkSize sets the size above which a copy that changes region,
// storage class or encryption is split into parts. Default is 5GiB.
func WithChunkSize(size int64) s3types.Option {
	return func(c *s3types.Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithPartSize sets the part size for multipart copies.
// Default is 8MB. S3 requires at least 5MB for every part but the last.
func WithPartSize(partSize int64) s3types.Option {
	return func(c *s3types.Config) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithPartConcurrency sets how many parts of one object are copied at once.
// Default is 5.
func WithPartConcurrency(n int) s3types.Option {
	return func(c *s3types.Config) {
		if n > 0 {
			c.PartConcurrency = n
		}
	}
}

// WithDetectContentType fills a missing Content-Type from the first bytes
// of the source object.
func WithDetectContentType(detect bool) s3types.Option {
	return func(c *s3types.Config) {
		c.DetectContentType = detect
	}
}

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithMaxRetries sets the maximum number of attempts for failed requests.
// Default is 3.
func WithMaxRetries(maxRetries int) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithRetryMode sets the retry mode for AWS SDK operations.
// Options are "standard", "adaptive". Default is "standard".
func WithRetryMode(mode string) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.RetryMode = mode
	}
}

// WithTimeout sets the timeout for individual S3 requests.
// Default is no timeout (0).
func WithTimeout(timeout time.Duration) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// It takes precedence over WithTimeout.
func WithCustomHTTPClient(client *http.Client) s3types.ClientOption {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}
