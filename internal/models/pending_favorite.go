package models

// PendingFavoriteStatus represents the drain state of a queued favorite change.
type PendingFavoriteStatus string

const (
	PendingFavoriteStatusPending PendingFavoriteStatus = "pending"
	// Parked items exceeded the configured attempt limit and are skipped by drains.
	PendingFavoriteStatusParked PendingFavoriteStatus = "parked"
)

// PendingFavoriteChange is a favorite toggle waiting to be sent to the server.
// ID is assigned by the queue and increases monotonically.
type PendingFavoriteChange struct {
	ID         int64                 `db:"id" json:"id"`
	PlanID     string                `db:"plan_id" json:"planId"`
	IsFavorite bool                  `db:"is_favorite" json:"isFavorite"`
	Attempts   int                   `db:"attempts" json:"attempts"`
	LastError  string                `db:"last_error" json:"lastError,omitempty"`
	Status     PendingFavoriteStatus `db:"status" json:"status"`
	CreatedAt  int64                 `db:"created_at" json:"createdAt"`
	UpdatedAt  int64                 `db:"updated_at" json:"updatedAt"`
}

// TableName returns the table name for PendingFavoriteChange.
func (PendingFavoriteChange) TableName() string {
	return "pending_favorites"
}
