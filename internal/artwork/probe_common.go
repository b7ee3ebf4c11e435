package artwork

// finishTagProbe turns extracted image bytes into a ProbeResult,
// writing them to outCachePath unless disableCache requests an
// in-memory Blob instead.
func finishTagProbe(img []byte, outCachePath string, disableCache bool) (ProbeResult, error) {
	if disableCache || outCachePath == "" {
		return ProbeResult{Found: true, Blob: img, BlobOffset: 0, BlobSize: int64(len(img))}, nil
	}
	dc := &diskCache{}
	if err := dc.WriteImage(outCachePath, img); err != nil {
		return notFoundResult, err
	}
	return ProbeResult{Found: true, BlobSize: int64(len(img))}, nil
}
