// Package approval implements the review workflow for teaching
// documents. Lesson planners go through a single review stage; work
// diaries go through two, first the head of department and then the
// principal.
//
// Decisions are procedure-style results: an illegal or unauthorized
// decision returns success=false with a human-readable message over a
// normal 200 response and changes nothing. Only transport or storage
// failures surface as HTTP errors. Rejections always carry a reason
// and are terminal, like approvals at the final stage.
package approval
