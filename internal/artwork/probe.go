package artwork

import "context"

// ProbeResult is the outcome of one probe in the cover-resolution
// chain. When Found is true, either Blob holds the image bytes, or the
// probe wrote them to the outCachePath it was given and Blob is empty
// (the orchestrator already knows that path).
type ProbeResult struct {
	Found      bool
	Blob       []byte
	BlobOffset int64
	BlobSize   int64
}

// notFoundResult is returned by probes that found nothing.
var notFoundResult = ProbeResult{}

// tagProbe is the uniform contract for embedded-tag probes:
// extract cover bytes from a tagged container format. When
// disableCache is true the probe must return the bytes as a Blob
// instead of writing to outCachePath.
type tagProbe interface {
	name() string
	probe(ctx context.Context, trackPath, outCachePath string, disableCache bool) (ProbeResult, error)
}

// errCancelled is the sentinel a probe returns to signal a
// generation-barrier or context cancellation: it short-circuits the remaining probe chain without
// writing a placeholder.
type errCancelled struct{ error }

func isCancelled(err error) bool {
	_, ok := err.(errCancelled)
	return ok
}
