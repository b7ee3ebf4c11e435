package artwork

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// lastFMProbe fetches cover art from Last.fm:
// its album.getinfo endpoint returns a sized set of cover images;
// the largest is preferred.
type lastFMProbe struct {
	apiKey string
	rc     *remoteClient
}

func newLastFMProbe(apiKey string, rc *remoteClient) *lastFMProbe {
	return &lastFMProbe{apiKey: apiKey, rc: rc}
}

func (p *lastFMProbe) name() string { return "lastfm" }

type lastFMAlbumInfo struct {
	Album struct {
		Image []struct {
			Text string `json:"#text"`
			Size string `json:"size"`
		} `json:"image"`
	} `json:"album"`
}

func (p *lastFMProbe) fetch(ctx context.Context, artist, album, title, outCachePath string) (ProbeResult, error) {
	if p.apiKey == "" {
		return notFoundResult, nil
	}

	resp, err := p.rc.get().R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"method":  "album.getinfo",
			"api_key": p.apiKey,
			"artist":  artist,
			"album":   album,
			"format":  "json",
		}).
		Get("https://ws.audioscrobbler.com/2.0/")
	if err != nil {
		if isAborted(err) {
			return notFoundResult, errCancelled{err}
		}
		return notFoundResult, errors.Wrap(err, "lastfm: request failed")
	}
	if resp.IsError() {
		return notFoundResult, nil
	}

	var info lastFMAlbumInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return notFoundResult, nil
	}

	url := bestLastFMImage(info.Album.Image)
	if url == "" {
		return notFoundResult, nil
	}

	img, err := p.rc.get().R().SetContext(ctx).Get(url)
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

// bestLastFMImage prefers, in order, "extralarge", "large", "medium".
func bestLastFMImage(images []struct {
	Text string `json:"#text"`
	Size string `json:"size"`
}) string {
	rank := map[string]int{"extralarge": 3, "large": 2, "medium": 1}
	best, bestRank := "", -1
	for _, img := range images {
		if img.Text == "" {
			continue
		}
		if r := rank[img.Size]; r > bestRank {
			bestRank = r
			best = img.Text
		}
	}
	return best
}
