package models

// CacheEntry is the stored metadata of a cached HTTP response.
// The body lives in the content-addressed blob store under BodyHash.
type CacheEntry struct {
	Namespace string `db:"namespace" json:"namespace"`
	Key       string `db:"request_key" json:"key"`
	Status    int    `db:"status" json:"status"`
	Header    []byte `db:"header" json:"header"` // JSON-encoded http.Header
	BodyHash  string `db:"body_hash" json:"body_hash"`
	Size      int64  `db:"size" json:"size"`
	StoredAt  int64  `db:"stored_at" json:"stored_at"`
}

// TableName returns the table name for CacheEntry.
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// KVEntry is one durable key-value record.
type KVEntry struct {
	Key       string `db:"key" json:"key"`
	Value     string `db:"value" json:"value"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for KVEntry.
func (KVEntry) TableName() string {
	return "kv_entries"
}
