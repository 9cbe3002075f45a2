package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating report files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// EvidenceExcerptBytes caps how much of a response body is copied into a finding.
	EvidenceExcerptBytes = 512
	// MaxResponseBodyBytes caps how much of a response body a probe reads at all.
	MaxResponseBodyBytes = 64 * 1024
	// MaxConnectionNameLength is the longest connection name the platform accepts.
	MaxConnectionNameLength = 35
)

const (
	DefaultRateLimitDelay = time.Second
	DefaultWorkers        = 5
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultCleanupTimeout = 30 * time.Second
)

const (
	DefaultUserAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	DefaultAttackerHost  = "attacker.com"
	DefaultAppConnection = "Username-Password-Authentication"
	DefaultOutputDir     = "./output"
	DefaultTestEmailHost = "test.com"
	MaxRecommendations   = 10
)
