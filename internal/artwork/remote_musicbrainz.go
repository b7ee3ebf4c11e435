package artwork

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// musicBrainzProbe looks a release up by (artist, album) and fetches its
// front cover from the Cover Art Archive.
type musicBrainzProbe struct {
	userAgent string
	rc        *remoteClient
}

func newMusicBrainzProbe(userAgent string, rc *remoteClient) *musicBrainzProbe {
	return &musicBrainzProbe{userAgent: userAgent, rc: rc}
}

func (p *musicBrainzProbe) name() string { return "musicbrainz" }

type mbSearchResult struct {
	Releases []struct {
		ID string `json:"id"`
	} `json:"releases"`
}

func (p *musicBrainzProbe) fetch(ctx context.Context, artist, album, title, outCachePath string) (ProbeResult, error) {
	query := fmt.Sprintf(`artist:"%s" AND release:"%s"`, artist, album)

	resp, err := p.rc.get().R().
		SetContext(ctx).
		SetHeader("User-Agent", p.userAgent).
		SetQueryParams(map[string]string{
			"query":  query,
			"fmt":    "json",
			"limit":  "1",
		}).
		Get("https://musicbrainz.org/ws/2/release")
	if err != nil {
		if isAborted(err) {
			return notFoundResult, errCancelled{err}
		}
		return notFoundResult, errors.Wrap(err, "musicbrainz: search failed")
	}
	if resp.IsError() {
		return notFoundResult, nil
	}

	var result mbSearchResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil || len(result.Releases) == 0 {
		return notFoundResult, nil
	}
	mbid := result.Releases[0].ID

	img, err := p.rc.get().R().
		SetContext(ctx).
		SetHeader("User-Agent", p.userAgent).
		Get("https://coverartarchive.org/release/" + mbid + "/front")
	if err != nil {
		if isAborted(err) {
			return notFoundResult, errCancelled{err}
		}
		return notFoundResult, nil
	}
	if img.IsError() || len(img.Body()) == 0 {
		return notFoundResult, nil
	}

	return finishTagProbe(img.Body(), outCachePath, false)
}
