// Package probe sends single HTTP probes to the target tenant.
//
// An Executor applies the fixed inter-request delay, retries transient
// failures, gives HTTP 429 one extra attempt and always hands back a Result:
// either a response or a typed Failure. Redirects are never followed so the
// caller can inspect Location headers.
package probe
