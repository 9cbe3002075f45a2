// Package constants centralizes scan defaults shared across the CLI.
//
// Request pacing, retry bounds, evidence limits and the default attacker host
// live here so cmd/ and internal/ agree on them without import cycles.
package constants
