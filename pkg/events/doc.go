// Package events serves campus events and notices. Both surfaces sit
// behind the module gate, publish to the change feed on mutation, and
// translate an absent backing table into the schema_missing sentinel
// response so a half-migrated deployment fails loudly instead of
// mysteriously.
package events
