package core

import "time"

const (
	ActivityCreated ActivityKind = "created"
	ActivityUpdated ActivityKind = "updated"
	ActivityDeleted ActivityKind = "deleted"
)

type ActivityKind string

func (k ActivityKind) Valid() bool {
	return k == ActivityCreated || k == ActivityUpdated || k == ActivityDeleted
}

// ActivityEvent records a confirmed transaction change for auditing.
// A deletion of a transaction outside the loaded page carries only its ID.
type ActivityEvent struct {
	ID          string       `json:"id"`
	Kind        ActivityKind `json:"kind"`
	UserEmail   string       `json:"user_email"`
	Transaction Transaction  `json:"transaction"`
	OccurredAt  time.Time    `json:"occurred_at"`
}
