package cache

import "errors"

// Error variables for cache construction and access.
var (
	ErrConfigFileNotFound  = errors.New("config file not found")
	ErrConfigFileRead      = errors.New("cannot read config file")
	ErrConfigInvalid       = errors.New("invalid config file")
	ErrUnknownVariant      = errors.New("unknown cache variant")
	ErrUnknownExtension    = errors.New("unrecognized config file extension")
	ErrAssocNotDivisor     = errors.New("associativity must evenly divide the line count")
	ErrLineSizeUnsupported = errors.New("line size must be 64")
	ErrZeroMSHRs           = errors.New("num_mshrs must be positive")
	ErrRegionOverlap       = errors.New("approximation regions overlap")
)
