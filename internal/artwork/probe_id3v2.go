package artwork

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// id3v2Probe reads embedded cover art from an ID3v2 tag: read
// the full tag, iterate frames, accept APIC (v2.3+) or PIC (v2.2), and
// extract the image bytes after skipping the encoding byte, MIME/format,
// picture-type byte and NUL-terminated description.
type id3v2Probe struct{}

func (id3v2Probe) name() string { return "id3v2" }

func (id3v2Probe) probe(ctx context.Context, trackPath, outCachePath string, disableCache bool) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return notFoundResult, errCancelled{err}
	}

	data, err := os.ReadFile(trackPath)
	if err != nil {
		return notFoundResult, errors.Wrapf(err, "id3v2: cannot read '%s'", trackPath)
	}
	if len(data) < 10 || string(data[0:3]) != "ID3" {
		return notFoundResult, nil // no ID3v2 tag: not an error, chain continues
	}

	major := data[3]
	tagSize := int(syncsafe(data[6:10]))
	end := 10 + tagSize
	if end > len(data) {
		end = len(data)
	}
	body := data[10:end]

	var best, fallback []byte
	pos := 0
	for pos < len(body) {
		frame, consumed, ok := readID3v2Frame(body[pos:], major)
		if !ok {
			break
		}
		pos += consumed
		if frame == nil {
			continue
		}
		id, payload := frame.id, frame.payload
		if major == 2 {
			if id != "PIC" {
				continue
			}
		} else {
			if id != "APIC" {
				continue
			}
		}
		img, picType, ok := parsePictureFrame(payload, major)
		if !ok {
			continue
		}
		if picType == 3 {
			best = img
			break
		}
		if picType == 0 && fallback == nil {
			fallback = img
		}
	}

	img := best
	if img == nil {
		img = fallback
	}
	if img == nil || len(img) == 0 {
		return notFoundResult, nil
	}

	return finishTagProbe(img, outCachePath, disableCache)
}

type id3v2Frame struct {
	id      string
	payload []byte
}

// readID3v2Frame reads one frame starting at buf[0]. It returns the
// frame, how many bytes were consumed, and whether a frame was read;
// padding or an unreadable frame yields (nil, 0, false).
func readID3v2Frame(buf []byte, major byte) (*id3v2Frame, int, bool) {
	if major == 2 {
		if len(buf) < 6 || buf[0] == 0 {
			return nil, 0, false
		}
		id := string(buf[0:3])
		size := int(buf[3])<<16 | int(buf[4])<<8 | int(buf[5])
		start := 6
		if start+size > len(buf) {
			return nil, 0, false
		}
		return &id3v2Frame{id: id, payload: buf[start : start+size]}, start + size, true
	}

	if len(buf) < 10 || buf[0] == 0 {
		return nil, 0, false
	}
	id := string(buf[0:4])
	var size int
	if major >= 4 {
		size = int(syncsafe(buf[4:8]))
	} else {
		size = int(binary.BigEndian.Uint32(buf[4:8]))
	}
	start := 10
	if start+size > len(buf) {
		return nil, 0, false
	}
	return &id3v2Frame{id: id, payload: buf[start : start+size]}, start + size, true
}

// parsePictureFrame extracts the image bytes and picture-type byte from
// an APIC/PIC payload. Minimum payload is 20 bytes of image data
// beyond the header fields.
func parsePictureFrame(payload []byte, major byte) (img []byte, picType byte, ok bool) {
	if len(payload) < 1 {
		return nil, 0, false
	}
	enc := payload[0]
	p := 1

	if major == 2 {
		if len(payload) < p+3 {
			return nil, 0, false
		}
		p += 3 // 3-byte image format, e.g. "JPG"
	} else {
		end := indexByte(payload[p:], 0)
		if end < 0 {
			return nil, 0, false
		}
		p += end + 1 // NUL-terminated MIME type
	}

	if len(payload) < p+1 {
		return nil, 0, false
	}
	picType = payload[p]
	p++

	descEnd := findNulTerminator(payload[p:], enc)
	if descEnd < 0 {
		return nil, 0, false
	}
	p += descEnd

	img = payload[p:]
	if len(img) < 20 {
		return nil, 0, false
	}
	return img, picType, true
}

// findNulTerminator returns the index right after the NUL terminator of
// a description string encoded with enc (0/3 = single-byte NUL, 1/2 =
// two-byte NUL).
func findNulTerminator(buf []byte, enc byte) int {
	if enc == 1 || enc == 2 {
		for i := 0; i+1 < len(buf); i += 2 {
			if buf[i] == 0 && buf[i+1] == 0 {
				return i + 2
			}
		}
		return -1
	}
	i := indexByte(buf, 0)
	if i < 0 {
		return -1
	}
	return i + 1
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

// syncsafe decodes a 4-byte ID3v2 syncsafe integer (7 significant bits
// per byte), used for the tag header size (all versions) and frame sizes
// in v2.4.
func syncsafe(b []byte) uint32 {
	return uint32(b[0])<<21 | uint32(b[1])<<14 | uint32(b[2])<<7 | uint32(b[3])
}
