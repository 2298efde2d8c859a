// Package rbac implements role-based access control for the campus
// platform. The role catalog itself is static reference data compiled
// into the binary; only role assignments live in the database.
//
// Access to a feature module is never granted by role name directly.
// Instead each module declares the permissions that unlock it, roles
// grant permissions, and the resolver derives module access from the
// union of a user's active role permissions. Adding a permission to a
// role is therefore sufficient to open a module to it.
//
// The SessionResolver caches resolved permission snapshots per user
// with a generation counter so that a snapshot computed before an
// invalidation can never overwrite a fresher one. Resolution failures
// fall back to an empty, resolved snapshot: errors deny, they never
// grant.
package rbac
