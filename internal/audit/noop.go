package audit

import "context"

// NoopStore discards every record. It is the default Store when no audit
// DSN is configured.
type NoopStore struct{}

func (NoopStore) Ping(context.Context) error                { return nil }
func (NoopStore) RecordBatch(context.Context, Record) error { return nil }
