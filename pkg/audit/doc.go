// Package audit records administrative and workflow actions to a
// durable trail: who did what to whom, when, with what detail.
// Recording is best effort by design; a failed audit write is logged
// but never fails the action it describes.
package audit
