package enums

// OutboxStatus tracks delivery progress of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusDeadLetter OutboxStatus = "dead_letter"
)
