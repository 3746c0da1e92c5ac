// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_JSONKeepsContentVerbatim(t *testing.T) {
	raw := `{"id":"p1","name":"Kyoto","is_favorite":true,"content":{"days":[{"day_number":1,"attractions":[{"name":"Fushimi Inari","image_url":"https://img.example/fi.jpg","order":0}]}]}}`

	var plan Plan
	require.NoError(t, json.Unmarshal([]byte(raw), &plan))
	assert.Equal(t, "p1", plan.ID)
	assert.True(t, plan.IsFavorite)

	out, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestPlanContent_Decode(t *testing.T) {
	raw := `{"days":[{"day_number":2,"date":"2026-04-02","attractions":[{"name":"Nijo","start_time":"09:00","end_time":"10:30","duration_minutes":90,"notes":"tickets online","order":1}]}]}`

	var content PlanContent
	require.NoError(t, json.Unmarshal([]byte(raw), &content))
	require.Len(t, content.Days, 1)
	assert.Equal(t, 2, content.Days[0].DayNumber)
	assert.Equal(t, 90, content.Days[0].Attractions[0].DurationMinutes)
}

func TestSyncStatus_JSONField(t *testing.T) {
	out, err := json.Marshal(SyncStatus{PendingSyncs: []string{"a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pendingSyncs":["a"]}`, string(out))
}

func TestSyncStatus_Contains(t *testing.T) {
	s := SyncStatus{PendingSyncs: []string{"a", "b"}}
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("c"))
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "pending_favorites", PendingFavoriteChange{}.TableName())
	assert.Equal(t, "cache_entries", CacheEntry{}.TableName())
	assert.Equal(t, "kv_entries", KVEntry{}.TableName())
}
