package artwork

import (
	"context"
	"regexp"
	"strings"
)

// remoteProbe is the uniform contract for remote cover lookups:
// (artist, album, title, outCachePath) -> Result. title is only
// consulted by wosProbe.
type remoteProbe interface {
	name() string
	fetch(ctx context.Context, artist, album, title, outCachePath string) (ProbeResult, error)
}

// parentheticalSuffix matches a trailing parenthesized or
// square-bracketed annotation, e.g. "Abbey Road (Remastered 2009)" or
// "Abbey Road [Deluxe Edition]".
var parentheticalSuffix = regexp.MustCompile(`\s*[\(\[][^()\[\]]*[\)\]]\s*$`)

// stripParenthetical removes one trailing parenthesized/bracketed
// annotation from album, reporting whether it changed anything (so the
// orchestrator knows whether a retry is worth attempting).
func stripParenthetical(album string) (string, bool) {
	stripped := parentheticalSuffix.ReplaceAllString(album, "")
	stripped = strings.TrimSpace(stripped)
	return stripped, stripped != "" && stripped != album
}

// runRemoteProbes tries each enabled probe in order, retrying once with
// a parenthetical-stripped album name if every probe fails on the first
// pass.
func runRemoteProbes(ctx context.Context, probes []remoteProbe, artist, album, title, outCachePath string) (ProbeResult, error) {
	res, err := tryRemoteProbes(ctx, probes, artist, album, title, outCachePath)
	if err != nil || res.Found {
		return res, err
	}

	if stripped, changed := stripParenthetical(album); changed {
		return tryRemoteProbes(ctx, probes, artist, stripped, title, outCachePath)
	}
	return notFoundResult, nil
}

func tryRemoteProbes(ctx context.Context, probes []remoteProbe, artist, album, title, outCachePath string) (ProbeResult, error) {
	for _, p := range probes {
		res, err := p.fetch(ctx, artist, album, title, outCachePath)
		if err != nil {
			if isCancelled(err) {
				return notFoundResult, err
			}
			log.WithFields(map[string]interface{}{"probe": p.name()}).Debug("remote probe failed, continuing chain")
			continue
		}
		if res.Found {
			return res, nil
		}
	}
	return notFoundResult, nil
}
