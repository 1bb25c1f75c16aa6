package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStorageOperationCardinality(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordStorageOperation(context.Background(), "write", "s3", time.Millisecond)
	m.RecordStorageOperation(context.Background(), "write", "s3", time.Millisecond)
	m.RecordStorageOperation(context.Background(), "write", "filesystem", time.Millisecond)

	countS3 := testutil.ToFloat64(m.storageOperationsTotal.WithLabelValues("write", "s3"))
	assert.Equal(t, 2.0, countS3)

	countFilesystem := testutil.ToFloat64(m.storageOperationsTotal.WithLabelValues("write", "filesystem"))
	assert.Equal(t, 1.0, countFilesystem)
}

func TestRecordStorageOperationBackendLabelDisabled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: false})

	m.RecordStorageOperation(context.Background(), "write", "s3-bucket-1", time.Millisecond)
	m.RecordStorageOperation(context.Background(), "write", "s3-bucket-2", time.Millisecond)

	count := testutil.ToFloat64(m.storageOperationsTotal.WithLabelValues("write", "*"))
	assert.Equal(t, 2.0, count)
}

func TestRecordStorageErrorBackendLabelDisabled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: false})

	m.RecordStorageError(context.Background(), "open", "ftp-host-1", "timeout")
	m.RecordStorageError(context.Background(), "open", "ftp-host-2", "timeout")

	count := testutil.ToFloat64(m.storageOperationErrors.WithLabelValues("open", "*", "timeout"))
	assert.Equal(t, 2.0, count)
}
