// Package checker implements the probes the scanner runs against a tenant.
//
// Architecture overview:
//
//   - Every check sends its requests through a Prober (normally a
//     *probe.Executor) and classifies the answers with package classifier.
//     A check returns a Report: one scan.CheckRecord plus the finding specs
//     it observed. Checks never touch the scan accumulator directly.
//   - Recon covers the tenant-level Phase 1 checks (OpenID metadata, CORS,
//     /authorize redirect validation). Enumerator detects the password grant
//     and probes single connection names for the discovery engine.
//     AccountChecks runs the per-connection Phase 3 checks and AppChecks the
//     application-level Phase 4 redirect sweep.
//   - Checks that make the platform create an account register it in a
//     Registry the moment the response arrives, so cleanup still finds it
//     when the scan is interrupted.
//   - Runner is the bounded worker pool shared by discovery and Phase 3.
//
// This layout keeps HTTP shapes and response patterns internal while the
// application layer only sequences phases and folds Reports together.
package checker
