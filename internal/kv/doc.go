// Package kv is the durable per-tenant key-value store behind the scheduler.
//
// Values are small named blobs ("jobs", "delivered") isolated per tenant.
// Update() is the transaction primitive: an atomic read-modify-write that two
// racing mutations of the same (tenant, key) cannot silently lose.
package kv
