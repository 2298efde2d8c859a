// Package realtime distributes row-change notifications over Redis
// pub/sub so connected clients can refresh without polling. Each
// mutated table has its own channel; events carry only the table,
// operation and row id, never row data. Publishing is best effort:
// a Redis outage is logged and the mutation proceeds.
package realtime
