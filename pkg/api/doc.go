// Package api assembles the campus HTTP server: it wires the stores,
// the session resolver and access gate, and every feature handler
// under a single /api/v1 router with the shared middleware chain.
package api
