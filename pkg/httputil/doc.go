// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
//
// Error responses follow a single shape: {"error": "<message>"}. Remote
// procedure endpoints (approval decisions, reception) use a discriminated
// result instead, {"success": bool, "message": string}, written with
// WriteProcedureResult; a logical rejection is a 200 with success=false,
// never an HTTP error.
package httputil
