package audit

// SQL queries for the batch audit trail.

const (
	queryInsertBatchAudit = `
		INSERT INTO batch_audit (
			batch_id, chunk_uuid, transactions, events,
			unique_items, frequent_items, pattern_tree_size,
			duration_millis, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
)
