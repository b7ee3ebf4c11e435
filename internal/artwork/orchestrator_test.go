package artwork

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oakmoth/medialib/internal/config"
	"github.com/oakmoth/medialib/internal/playlistitem"
)

func testQuery(uri, artist, album, title string) *Query {
	track := playlistitem.New(uri, map[string]string{"artist": artist, "album": album, "title": title})
	return &Query{Track: track, Type: SizeFull}
}

// gatedProbe counts its invocations and, when trackPath matches
// blockPath, waits on release before returning result.
type gatedProbe struct {
	blockPath string
	release   chan struct{}
	result    ProbeResult
	calls     int32
}

func (p *gatedProbe) name() string { return "gated" }

func (p *gatedProbe) probe(ctx context.Context, trackPath, outCachePath string, disableCache bool) (ProbeResult, error) {
	atomic.AddInt32(&p.calls, 1)
	if trackPath == p.blockPath && p.release != nil {
		<-p.release
	}
	return p.result, nil
}

func waitForCalls(t *testing.T, calls *int32, want int32, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(calls) >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d probe calls, got %d", want, atomic.LoadInt32(calls))
}

// TestCoverGetSquashesEquivalentQueries exercises request squashing
// through the real three-queue pipeline: N concurrent equivalent
// queries for the same track must resolve through exactly one probe
// invocation, with every caller's own callback still firing.
func TestCoverGetSquashesEquivalentQueries(t *testing.T) {
	r := NewResolver(t.TempDir(), config.ArtworkCfg{EnableEmbedded: true, FetchConcurrency: 4}, nil)
	defer r.Close()

	release := make(chan struct{})
	probe := &gatedProbe{
		blockPath: "/music/same.flac",
		release:   release,
		result:    ProbeResult{Found: true, Blob: []byte("cover bytes")},
	}
	r.tagProbes = []tagProbe{probe}

	const n = 5
	var wg sync.WaitGroup
	var delivered int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		q := testQuery("/music/same.flac", "Air", "Moon Safari", "La Femme d'Argent")
		r.CoverGet(q, func(ci *CoverInfo) {
			atomic.AddInt32(&delivered, 1)
			if ci == nil || !ci.CoverFound {
				t.Errorf("callback got ci = %+v, want a found cover", ci)
			} else {
				r.CoverInfoRelease(ci)
			}
			wg.Done()
		})
		if i == 0 {
			// Let the first query's fetch actually reach and block in
			// the probe before submitting the rest, so every later
			// submission is guaranteed to find the group still open.
			waitForCalls(t, &probe.calls, 1, time.Second)
		}
	}

	close(release)
	wg.Wait()

	if delivered != n {
		t.Fatalf("delivered %d callbacks, want %d", delivered, n)
	}
	if got := atomic.LoadInt32(&probe.calls); got != 1 {
		t.Fatalf("probe invoked %d times, want 1 (squashing should collapse equivalent queries)", got)
	}
}

// TestCoverGetReusesPlaceholderWithoutReprobing exercises S2: once a
// query has produced a negative disk placeholder, a later identical
// query must return failure without re-running any probe.
func TestCoverGetReusesPlaceholderWithoutReprobing(t *testing.T) {
	r := NewResolver(t.TempDir(), config.ArtworkCfg{EnableEmbedded: true, FetchConcurrency: 4}, nil)
	defer r.Close()

	probe := &gatedProbe{result: notFoundResult}
	r.tagProbes = []tagProbe{probe}

	first := make(chan *CoverInfo, 1)
	r.CoverGet(testQuery("/music/nocover.flac", "X", "Y", "Z"), func(ci *CoverInfo) { first <- ci })
	ci := <-first
	if ci == nil || ci.CoverFound {
		t.Fatalf("first CoverGet() = %+v, want CoverFound=false", ci)
	}
	r.CoverInfoRelease(ci)
	waitForCalls(t, &probe.calls, 1, time.Second)

	second := make(chan *CoverInfo, 1)
	r.CoverGet(testQuery("/music/nocover.flac", "X", "Y", "Z"), func(ci *CoverInfo) { second <- ci })
	ci2 := <-second
	if ci2 == nil || ci2.CoverFound {
		t.Fatalf("second CoverGet() = %+v, want CoverFound=false", ci2)
	}
	r.CoverInfoRelease(ci2)

	if got := atomic.LoadInt32(&probe.calls); got != 1 {
		t.Fatalf("probe invoked %d times after the placeholder was written, want 1 (no re-probing)", got)
	}
}

// fakeRemoteProbe returns a fixed result regardless of its arguments.
type fakeRemoteProbe struct {
	result ProbeResult
}

func (p *fakeRemoteProbe) name() string { return "fake-remote" }
func (p *fakeRemoteProbe) fetch(ctx context.Context, artist, album, title, outCachePath string) (ProbeResult, error) {
	return p.result, nil
}

// TestCoverGetDisableCacheYieldsInMemoryBlob exercises S3: with
// disk caching disabled, a remote hit must come back as an in-memory
// Blob and must not be written to the disk cache.
func TestCoverGetDisableCacheYieldsInMemoryBlob(t *testing.T) {
	cacheDir := t.TempDir()
	r := NewResolver(cacheDir, config.ArtworkCfg{DisableCache: true, FetchConcurrency: 4}, nil)
	defer r.Close()

	r.remoteProbes = []remoteProbe{&fakeRemoteProbe{result: ProbeResult{Found: true, Blob: []byte("remote bytes")}}}

	cachePath, err := r.diskCache.Path("Air", "Moon Safari", "/music/remote.flac")
	if err != nil {
		t.Fatalf("diskCache.Path() error: %v", err)
	}

	done := make(chan *CoverInfo, 1)
	r.CoverGet(testQuery("/music/remote.flac", "Air", "Moon Safari", "La Femme d'Argent"), func(ci *CoverInfo) { done <- ci })
	ci := <-done
	if ci == nil || !ci.CoverFound {
		t.Fatalf("CoverGet() = %+v, want a found cover", ci)
	}
	if string(ci.Blob) != "remote bytes" {
		t.Fatalf("ci.Blob = %q, want %q", ci.Blob, "remote bytes")
	}
	if ci.ImageFilename != "" {
		t.Fatalf("ci.ImageFilename = %q, want empty when caching is disabled", ci.ImageFilename)
	}
	r.CoverInfoRelease(ci)

	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Fatalf("cache file %q exists, want no disk write while disable_cache is set", cachePath)
	}
}

// TestResetCancelsQueuedJobBeforeItProbes exercises S6: Reset() must
// abort a job still queued behind a saturated fetch slot before it
// ever reaches a probe, delivering nil to its callback.
func TestResetCancelsQueuedJobBeforeItProbes(t *testing.T) {
	r := NewResolver(t.TempDir(), config.ArtworkCfg{EnableEmbedded: true, FetchConcurrency: 1}, nil)
	defer r.Close()

	release := make(chan struct{})
	probe := &gatedProbe{
		blockPath: "/music/first.flac",
		release:   release,
		result:    ProbeResult{Found: true, Blob: []byte("cover bytes")},
	}
	r.tagProbes = []tagProbe{probe}

	firstDone := make(chan *CoverInfo, 1)
	r.CoverGet(testQuery("/music/first.flac", "A", "B", "C"), func(ci *CoverInfo) { firstDone <- ci })
	waitForCalls(t, &probe.calls, 1, time.Second) // first job now holds the sole fetch slot

	secondDone := make(chan *CoverInfo, 1)
	r.CoverGet(testQuery("/music/second.flac", "D", "E", "F"), func(ci *CoverInfo) { secondDone <- ci })

	// Give the process queue a moment to reach the blocked fetch-slot
	// acquisition for the second job before cancelling.
	time.Sleep(20 * time.Millisecond)
	r.Reset()
	close(release)

	firstCi := <-firstDone
	if firstCi != nil {
		r.CoverInfoRelease(firstCi)
	}

	secondCi := <-secondDone
	if secondCi != nil {
		t.Fatalf("second callback got %+v, want nil after Reset() cancelled it", secondCi)
	}
	if got := atomic.LoadInt32(&probe.calls); got != 1 {
		t.Fatalf("probe invoked %d times, want 1 (the cancelled job must never reach a probe)", got)
	}
}
