package artwork

import (
	"context"
	"encoding/binary"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// mp4Probe reads embedded cover art from an MP4/M4A/M4B container:
// walk the atom tree down to moov/udta/meta/ilst/covr/data and return the
// data atom's payload, skipping its 8-byte version/flags/reserved header.
type mp4Probe struct{}

func (mp4Probe) name() string { return "mp4" }

func (mp4Probe) probe(ctx context.Context, trackPath, outCachePath string, disableCache bool) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return notFoundResult, errCancelled{err}
	}

	data, err := os.ReadFile(trackPath)
	if err != nil {
		return notFoundResult, errors.Wrapf(err, "mp4: cannot read '%s'", trackPath)
	}

	moov, ok := findAtom(data, "moov")
	if !ok {
		return notFoundResult, nil
	}
	udta, ok := findAtom(moov, "udta")
	if !ok {
		return notFoundResult, nil
	}
	meta, ok := findAtom(udta, "meta")
	if !ok {
		return notFoundResult, nil
	}
	// "meta" carries an extra 4-byte version/flags header before its
	// children, unlike the other containers walked here.
	if len(meta) < 4 {
		return notFoundResult, nil
	}
	ilst, ok := findAtom(meta[4:], "ilst")
	if !ok {
		return notFoundResult, nil
	}
	covr, ok := findAtom(ilst, "covr")
	if !ok {
		return notFoundResult, nil
	}
	payload, ok := findAtom(covr, "data")
	if !ok {
		return notFoundResult, nil
	}
	if len(payload) < 8 {
		return notFoundResult, nil
	}
	img := payload[8:] // 4-byte type flags + 4-byte reserved
	if len(img) < 20 {
		return notFoundResult, nil
	}

	return finishTagProbe(img, outCachePath, disableCache)
}

// findAtom scans buf (a sequence of sibling atoms) for the first one
// whose 4-character type matches name, and returns its payload (the
// bytes after the 8-byte size+type header, or the 64-bit extended size
// form).
func findAtom(buf []byte, name string) ([]byte, bool) {
	pos := 0
	for pos+8 <= len(buf) {
		size := int(binary.BigEndian.Uint32(buf[pos : pos+4]))
		typ := string(buf[pos+4 : pos+8])
		headerLen := 8
		if size == 1 {
			if pos+16 > len(buf) {
				break
			}
			size = int(binary.BigEndian.Uint64(buf[pos+8 : pos+16]))
			headerLen = 16
		}
		if size < headerLen {
			break
		}
		end := pos + size
		if end > len(buf) {
			end = len(buf)
		}
		if strings.EqualFold(typ, name) {
			return buf[pos+headerLen : end], true
		}
		if size == 0 {
			break
		}
		pos = end
	}
	return nil, false
}
