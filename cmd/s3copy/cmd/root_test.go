package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{
			name:   "text",
			format: "text",
			level:  "info",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=hello")
			},
		},
		{
			name:   "json",
			format: "JSON",
			level:  "debug",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `"msg":"hello"`)
			},
		},
		{name: "bad format", format: "xml", level: "info", wantErr: true},
		{name: "bad level", format: "text", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.format, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		want    s3types.Location
		wantErr bool
	}{
		{uri: "s3://logs/2024/", want: s3types.Location{Bucket: "logs", Key: "2024/"}},
		{uri: "s3://logs", want: s3types.Location{Bucket: "logs"}},
		{uri: "s3://logs/a/b.txt", want: s3types.Location{Bucket: "logs", Key: "a/b.txt"}},
		{uri: "logs/2024/", wantErr: true},
		{uri: "s3://Logs/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := parseS3URI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	yamlManifest := `
items:
  - source: {bucket: src, key: data/}
  - source: {bucket: src, key: one.txt}
    target: {bucket: other, key: renamed.txt}
    deleteSource: true
    tags: {Team: Infra}
    tagDirective: Replaced
defaults:
  targetBucket: dst
  targetKeyTemplate: backup/${RelativeKey}
  relativePrefix: data/
  headers: {Cache-Control: no-cache}
  headerDirective: Add
  storageClass: STANDARD_IA
  avoidLoop: true
  triggerType: event
`
	jsonManifest := `{
  "items": [{"source": {"bucket": "src", "key": "data/"}}],
  "defaults": {"targetBucket": "dst"}
}`

	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("/manifests/copy.yaml", []byte(yamlManifest), 0o600))

	t.Run("yaml file", func(t *testing.T) {
		req, err := loadManifest(memFS, "/manifests/copy.yaml", nil)
		require.NoError(t, err)
		require.Len(t, req.Items, 2)

		second := req.Items[1]
		require.NotNil(t, second.Target)
		assert.Equal(t, "renamed.txt", second.Target.Key)
		require.NotNil(t, second.DeleteSource)
		assert.True(t, *second.DeleteSource)
		assert.Equal(t, map[string]string{"Team": "Infra"}, second.Tags)
		assert.Equal(t, s3types.DirectiveReplaced, second.TagDirective)

		d := req.Defaults
		assert.Equal(t, "dst", d.TargetBucket)
		assert.Equal(t, "backup/${RelativeKey}", d.TargetKeyTemplate)
		assert.Equal(t, map[string]string{"Cache-Control": "no-cache"}, d.Headers)
		assert.Equal(t, s3types.StorageClassStandardIA, d.StorageClass)
		assert.Equal(t, s3types.TriggerEvent, d.TriggerType)
		assert.True(t, d.AvoidLoop)
	})

	t.Run("json on stdin", func(t *testing.T) {
		req, err := loadManifest(memFS, "-", strings.NewReader(jsonManifest))
		require.NoError(t, err)
		require.Len(t, req.Items, 1)
		assert.Equal(t, s3types.Location{Bucket: "src", Key: "data/"}, req.Items[0].Source)
		assert.Nil(t, req.Items[0].Target)
		assert.Equal(t, "dst", req.Defaults.TargetBucket)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := loadManifest(memFS, "-", strings.NewReader("items: []\nbogus: 1\n"))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := loadManifest(memFS, "-", strings.NewReader(""))
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadManifest(memFS, "/manifests/nope.yaml", nil)
		assert.ErrorContains(t, err, "failed to read manifest")
	})
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	copies := prometheus.NewCounter(prometheus.CounterOpts{Name: "s3copy_test_copies_total", Help: "Copies."})
	reg.MustRegister(copies)
	copies.Add(3)

	memFS := billy.NewInMemoryFS()
	require.NoError(t, writeMetrics(memFS, "/var/metrics/s3copy.prom", reg))

	data, err := memFS.ReadFile("/var/metrics/s3copy.prom")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE s3copy_test_copies_total counter")
	assert.Contains(t, string(data), "s3copy_test_copies_total 3")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "s3copy version dev")
}
