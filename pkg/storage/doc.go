/*
Package storage provides the Resource Store: the single authoritative
persistence layer shared by the balancer, task workers, pool views, and
the Resource Manager facade.

BoltStore backs the Store interface with an embedded bbolt database: one
bucket holding every resource, JSON-marshaled and keyed by id. The one
operation worth calling out is CompareAndSet, which runs a filter check
and a conditional write inside a single db.Update transaction. bbolt
serializes all writers against each other, so the check-then-set is
atomic at the row level — this is what lets the task queue's push gate
and the Resource Manager's allocate/deallocate checks race safely against
the balancer and each other without a separate lock.

Find/Count apply types.Filter in Go after a full bucket scan; this is the
boltdb-appropriate shape (no secondary indexes) for a store sized to
thousands, not millions, of rows.
*/
package storage
