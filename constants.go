package bdev

import "github.com/go-bdev/bdev/internal/constants"

// Re-exported tunables for callers who only need the defaults, not the
// full internal/constants surface.
const (
	DefaultIOPoolSize  = constants.DefaultIOPoolSize
	DefaultIOCacheSize = constants.DefaultIOCacheSize
	DefaultBlockLen    = constants.DefaultBlockLen
	DefaultMaxRWSize   = constants.DefaultMaxRWSize
)
