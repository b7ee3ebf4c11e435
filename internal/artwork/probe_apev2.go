package artwork

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// apev2Probe reads embedded cover art from an APEv2 tag: find
// the APEv2 footer, walk items looking for a case-insensitive "cover art
// (front)" key, and split its value on the first NUL into a filename and
// the image bytes that follow.
type apev2Probe struct{}

const apev2FooterSize = 32

var apev2Magic = []byte("APETAGEX")

func (apev2Probe) name() string { return "apev2" }

func (apev2Probe) probe(ctx context.Context, trackPath, outCachePath string, disableCache bool) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return notFoundResult, errCancelled{err}
	}

	data, err := os.ReadFile(trackPath)
	if err != nil {
		return notFoundResult, errors.Wrapf(err, "apev2: cannot read '%s'", trackPath)
	}
	if len(data) < apev2FooterSize {
		return notFoundResult, nil
	}

	footer := data[len(data)-apev2FooterSize:]
	if !bytes.Equal(footer[0:8], apev2Magic) {
		return notFoundResult, nil // no APEv2 tag
	}

	tagSize := binary.LittleEndian.Uint32(footer[12:16])
	itemCount := binary.LittleEndian.Uint32(footer[16:20])

	tagStart := len(data) - int(tagSize)
	if tagStart < 0 {
		return notFoundResult, nil
	}
	// tagSize includes the footer but not the header; items sit right
	// after tagStart up to (but not including) the footer.
	body := data[tagStart : len(data)-apev2FooterSize]

	pos := 0
	for i := uint32(0); i < itemCount && pos+8 <= len(body); i++ {
		valueSize := int(binary.LittleEndian.Uint32(body[pos : pos+4]))
		pos += 8 // skip size + flags
		keyEnd := indexByte(body[pos:], 0)
		if keyEnd < 0 {
			break
		}
		key := string(body[pos : pos+keyEnd])
		pos += keyEnd + 1
		if pos+valueSize > len(body) {
			break
		}
		value := body[pos : pos+valueSize]
		pos += valueSize

		if strings.EqualFold(key, "cover art (front)") {
			nul := indexByte(value, 0)
			if nul < 0 {
				continue
			}
			img := value[nul+1:]
			if len(img) < 20 {
				continue
			}
			return finishTagProbe(img, outCachePath, disableCache)
		}
	}

	return notFoundResult, nil
}
