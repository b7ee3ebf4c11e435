package artwork

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// albumArtProbe scrapes albumart.org's search results page for the
// first result thumbnail; like wosProbe, it parses HTML rather than
// a JSON API.
type albumArtProbe struct {
	rc *remoteClient
}

func newAlbumArtProbe(rc *remoteClient) *albumArtProbe {
	return &albumArtProbe{rc: rc}
}

func (p *albumArtProbe) name() string { return "albumart" }

func (p *albumArtProbe) fetch(ctx context.Context, artist, album, title, outCachePath string) (ProbeResult, error) {
	q := url.Values{}
	q.Set("searchkey", strings.TrimSpace(artist+" "+album))
	q.Set("itempage", "1")
	q.Set("newsearch", "1")
	q.Set("searchindx", "album")

	resp, err := p.rc.get().R().
		SetContext(ctx).
		Get("https://www.albumart.org/index.php?" + q.Encode())
	if err != nil {
		if isAborted(err) {
			return notFoundResult, errCancelled{err}
		}
		return notFoundResult, errors.Wrap(err, "albumart: search failed")
	}
	if resp.IsError() {
		return notFoundResult, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return notFoundResult, nil
	}

	var imgURL string
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok {
			return true
		}
		if strings.Contains(src, "albumart.php") {
			imgURL = src
			return false
		}
		return true
	})
	if imgURL == "" {
		return notFoundResult, nil
	}
	if !strings.HasPrefix(imgURL, "http") {
		imgURL = fmt.Sprintf("https://www.albumart.org/%s", strings.TrimPrefix(imgURL, "/"))
	}

	img, err := p.rc.get().R().SetContext(ctx).Get(imgURL)
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
