package xe

import "github.com/go-orz/orz"

var (
	ErrInvalidParams   = orz.NewError(10400, "invalid request parameters")
	ErrNoAnalysis      = orz.NewError(10404, "no analysis result available yet")
	ErrCacheCorrupted  = orz.NewError(10500, "cache payload corrupted")
	ErrPipelineFailure = orz.NewError(10501, "signal pipeline failed")
)
