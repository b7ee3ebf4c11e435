package artwork

import (
	"context"
	"os"

	"github.com/dhowden/tag"
	"github.com/pkg/errors"
)

// dhowdenProbe is a fallback tag probe: it runs after
// the four hand-rolled format probes and catches any container dhowden/tag
// understands but this package's byte-level parsers didn't (odd frame
// layouts, Ogg/Vorbis comments, etc). The hand-rolled probes stay the
// primary path because they pin exact frame-skip semantics (picture
// type preference, NUL-terminator width by encoding) that a generic
// library abstracts away; dhowden/tag only needs to cover the residual.
type dhowdenProbe struct{}

func (dhowdenProbe) name() string { return "dhowden" }

func (dhowdenProbe) probe(ctx context.Context, trackPath, outCachePath string, disableCache bool) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return notFoundResult, errCancelled{err}
	}

	f, err := os.Open(trackPath)
	if err != nil {
		return notFoundResult, errors.Wrapf(err, "dhowden: cannot open '%s'", trackPath)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return notFoundResult, nil // unreadable/untagged: not an error, chain continues
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) < 20 {
		return notFoundResult, nil
	}

	return finishTagProbe(pic.Data, outCachePath, disableCache)
}
