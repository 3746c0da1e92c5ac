package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss")))
}

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(FetchResponsesTotal.WithLabelValues("api", "placeholder"))
	RecordFetch("api", "placeholder")
	assert.Equal(t, before+1, testutil.ToFloat64(FetchResponsesTotal.WithLabelValues("api", "placeholder")))
}

func TestRecordSyncItem(t *testing.T) {
	before := testutil.ToFloat64(SyncItemsTotal.WithLabelValues("failed"))
	RecordSyncItem("failed")
	assert.Equal(t, before+1, testutil.ToFloat64(SyncItemsTotal.WithLabelValues("failed")))
}
