package infra

import (
	"context"
	"path/filepath"
	"testing"

	appconfig "comandapos/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalReportStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	store := NewLocalReportStore(dir)

	ref, err := store.Save(ctx, "caixa-1.pdf", []byte("%PDF-1.3 test"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "caixa-1.pdf"), ref)

	got, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(got))

	_, err = store.Load(ctx, filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestNewReportStore_PicksBackend(t *testing.T) {
	s, err := NewReportStore(&appconfig.Config{ReportStoragePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalReportStore{}, s)

	s, err = NewReportStore(&appconfig.Config{
		ReportS3Bucket:    "reports",
		ReportS3Endpoint:  "http://localhost:9000",
		ReportS3AccessKey: "minio",
		ReportS3SecretKey: "minio123",
		ReportS3PathStyle: true,
	})
	require.NoError(t, err)
	assert.IsType(t, &S3ReportStore{}, s)
}

func TestParseS3Ref(t *testing.T) {
	b, k, ok := parseS3Ref("s3://reports/reports/caixa-1.pdf")
	assert.True(t, ok)
	assert.Equal(t, "reports", b)
	assert.Equal(t, "reports/caixa-1.pdf", k)

	for _, bad := range []string{"/tmp/x.pdf", "s3://", "s3://bucket", "s3:///key"} {
		_, _, ok := parseS3Ref(bad)
		assert.False(t, ok, bad)
	}
}
