// Package discovery finds which authentication connections exist on a
// tenant. It builds the candidate name set from the built-in wordlist, an
// optional wordlist file and keyword variations, then probes every candidate
// once on a bounded worker pool.
package discovery
