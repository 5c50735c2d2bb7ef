// Package jobs hosts the background worker processing audit trail tasks.
package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// JobAuditRecord labels audit persistence runs in job metrics.
	JobAuditRecord = "audit_record"
	// JobAuditPrune labels audit retention runs in job metrics.
	JobAuditPrune = "audit_prune"
)
