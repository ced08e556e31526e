// Package authority implements role-based access control for agent
// operations. It defines the closed set of permission tokens (Authority),
// an immutable role to permission-set table (RoleMap) and a Guard that
// wraps privileged operations with a permission check resolved against the
// calling agent's role at invocation time.
//
// The role map is an explicitly constructed configuration object passed by
// reference rather than a hidden global, so tests can substitute alternate
// permission tables. Guard checks behave identically for blocking and
// long-running operations; they add no concurrency of their own.
package authority
