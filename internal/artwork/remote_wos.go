package artwork

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// wosProbe is the World of Spectrum cover probe, used only for `.ay`
// tracks (ZX Spectrum chiptune chip-music rips), keyed by title alone
// rather than (artist, album) since AY files rarely carry either
//. It scrapes the game's inlay/loading
// screen thumbnail off its info page.
type wosProbe struct {
	rc *remoteClient
}

func newWoSProbe(rc *remoteClient) *wosProbe {
	return &wosProbe{rc: rc}
}

func (p *wosProbe) name() string { return "wos" }

func (p *wosProbe) fetch(ctx context.Context, artist, album, title, outCachePath string) (ProbeResult, error) {
	if title == "" {
		return notFoundResult, nil
	}

	q := url.Values{}
	q.Set("search", title)

	resp, err := p.rc.get().R().
		SetContext(ctx).
		Get("https://www.worldofspectrum.org/infoseekid.cgi?" + q.Encode())
	if err != nil {
		if isAborted(err) {
			return notFoundResult, errCancelled{err}
		}
		return notFoundResult, errors.Wrap(err, "wos: search failed")
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
		if strings.Contains(src, "/pub/sinclair/screens/") || strings.Contains(src, "/pub/sinclair/titlepages/") {
			imgURL = src
			return false
		}
		return true
	})
	if imgURL == "" {
		return notFoundResult, nil
	}
	if !strings.HasPrefix(imgURL, "http") {
		imgURL = "https://www.worldofspectrum.org" + imgURL
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
