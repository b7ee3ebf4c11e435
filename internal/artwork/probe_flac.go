package artwork

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// flacProbe reads embedded cover art from a FLAC stream: walk
// the metadata block chain after the "fLaC" marker, and within a
// PICTURE block (type 6) prefer picture-type 3 (front cover), falling
// back to type 0.
type flacProbe struct{}

const flacPictureBlockType = 6

func (flacProbe) name() string { return "flac" }

func (flacProbe) probe(ctx context.Context, trackPath, outCachePath string, disableCache bool) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return notFoundResult, errCancelled{err}
	}

	data, err := os.ReadFile(trackPath)
	if err != nil {
		return notFoundResult, errors.Wrapf(err, "flac: cannot read '%s'", trackPath)
	}
	if len(data) < 4 || string(data[0:4]) != "fLaC" {
		return notFoundResult, nil
	}

	var best, fallback []byte
	pos := 4
	for pos+4 <= len(data) {
		header := data[pos]
		last := header&0x80 != 0
		blockType := header & 0x7f
		size := int(data[pos+1])<<16 | int(data[pos+2])<<8 | int(data[pos+3])
		start := pos + 4
		end := start + size
		if end > len(data) {
			end = len(data)
		}

		if blockType == flacPictureBlockType {
			img, picType, ok := parseFlacPicture(data[start:end])
			if ok {
				if picType == 3 {
					best = img
				} else if picType == 0 && fallback == nil {
					fallback = img
				}
			}
		}

		if last {
			break
		}
		pos = end
	}

	img := best
	if img == nil {
		img = fallback
	}
	if img == nil || len(img) < 20 {
		return notFoundResult, nil
	}

	return finishTagProbe(img, outCachePath, disableCache)
}

// parseFlacPicture decodes a METADATA_BLOCK_PICTURE payload: picture
// type, then length-prefixed MIME, length-prefixed description, width,
// height, depth, color count, then length-prefixed picture data.
func parseFlacPicture(buf []byte) (img []byte, picType byte, ok bool) {
	if len(buf) < 4 {
		return nil, 0, false
	}
	picType = buf[3] // big-endian uint32 picture type, low byte suffices here
	p := 4

	if p+4 > len(buf) {
		return nil, 0, false
	}
	mimeLen := int(binary.BigEndian.Uint32(buf[p : p+4]))
	p += 4 + mimeLen

	if p+4 > len(buf) {
		return nil, 0, false
	}
	descLen := int(binary.BigEndian.Uint32(buf[p : p+4]))
	p += 4 + descLen

	// width, height, depth, color count: 4 x uint32
	p += 16
	if p+4 > len(buf) {
		return nil, 0, false
	}
	dataLen := int(binary.BigEndian.Uint32(buf[p : p+4]))
	p += 4

	if p+dataLen > len(buf) {
		return nil, 0, false
	}
	return buf[p : p+dataLen], picType, true
}
