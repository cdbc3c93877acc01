// Package preflight provides readiness checks for the services and paths
// castsync depends on.
//
// The worker runs RunAll once before it starts claiming queue items so a
// misconfigured media server or an expired key halts it before items pile
// up as failed. "castsync config validate --check" prints the same results.
//
// Checks for disabled features are skipped.
package preflight
