// Package users manages campus accounts: creation, deactivation,
// reactivation and API token issuance. Management power is scoped:
// holders of manage_users_all act on anyone, department-scoped
// managers only on users in their own departments, and deactivation
// immediately invalidates the target's resolved permissions.
package users
