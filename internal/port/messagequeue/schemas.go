package messagequeue

import "time"

// TenantEventPayload is the schema for tenants.provisioned and
// tenants.updated messages.
type TenantEventPayload struct {
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	SchemaName string    `json:"schema_name"`
	Hostname   string    `json:"hostname,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SweepRequestedPayload is the schema for tenants.sweep.requested messages.
// An empty Date means today (UTC).
type SweepRequestedPayload struct {
	Date string `json:"date,omitempty"`
}

// SweepFailure describes one tenant that failed during a sweep.
type SweepFailure struct {
	TenantID  string `json:"tenant_id"`
	Partition string `json:"partition"`
	Error     string `json:"error"`
}

// SweepCompletedPayload is the schema for tenants.sweep.completed messages.
type SweepCompletedPayload struct {
	Date         string         `json:"date"`
	Tenants      int            `json:"tenants"`
	UsersDeleted int64          `json:"users_deleted"`
	Failures     []SweepFailure `json:"failures"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}
