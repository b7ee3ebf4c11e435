package artwork

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oakmoth/medialib/internal/config"
)

// Resolver is the artwork orchestrator: it drives the sibling scan,
// embedded-tag probes, disk cache and remote lookups for one query
// through three execution contexts (submission, process, fetch) and
// exposes the public CoverGet/Reset/CoverInfoRelease API.
type Resolver struct {
	cfg config.ArtworkCfg

	lru       *lru
	squasher  *squasher
	diskCache *diskCache
	sibling   *siblingScanner

	tagProbes    []tagProbe
	remoteProbes []remoteProbe
	remoteClient *remoteClient

	generation int64 // atomic, monotonic job counter
	cancelAt   int64 // atomic, barrier: jobs with generation<=cancelAt abort

	submissionCh chan *resolveJob
	processCh    chan *resolveJob
	fetchSem     chan struct{}
	callbacks    *callbackMap

	listenersMu sync.Mutex
	listeners   []registeredListener
	nextListener int64

	wg   sync.WaitGroup
	quit chan struct{}
}

type registeredListener struct {
	id       int64
	fn       Listener
	userdata interface{}
}

// resolveJob is one in-flight cover request plus its serialization
// barrier generation.
type resolveJob struct {
	query      *Query
	generation int64
	group      *squashGroup
}

const listenerMax = 100

// NewResolver creates a Resolver and starts its background queues. vfs
// is the boundary VFS-plugin list for container-URI tracks; it may be nil.
func NewResolver(cacheDir string, cfg config.ArtworkCfg, vfs []vfsPlugin) *Resolver {
	fetchLimit := cfg.FetchConcurrency
	if fetchLimit <= 0 {
		fetchLimit = 4
	}

	rc := newRemoteClient()

	r := &Resolver{
		cfg:          cfg,
		lru:          newLRU(),
		squasher:     newSquasher(),
		diskCache:    newDiskCache(cacheDir),
		sibling:      newSiblingScanner(cfg.FileMask, cfg.Folders, vfs),
		tagProbes:    []tagProbe{flacProbe{}, id3v2Probe{}, apev2Probe{}, mp4Probe{}, dhowdenProbe{}},
		remoteClient: rc,
		submissionCh: make(chan *resolveJob, 256),
		processCh:    make(chan *resolveJob, 256),
		fetchSem:     make(chan struct{}, fetchLimit),
		callbacks:    newCallbackMap(),
		quit:         make(chan struct{}),
	}
	r.remoteProbes = r.buildRemoteProbes()

	r.wg.Add(2)
	go r.runSubmissionQueue()
	go r.runProcessQueue()

	return r
}

func (r *Resolver) buildRemoteProbes() []remoteProbe {
	var probes []remoteProbe
	if r.cfg.EnableLastFM {
		probes = append(probes, newLastFMProbe(r.cfg.LastFMAPIKey, r.remoteClient))
	}
	if r.cfg.EnableMusicBrainz {
		ua := r.cfg.MusicBrainzUA
		if ua == "" {
			ua = "medialib/1.0"
		}
		probes = append(probes, newMusicBrainzProbe(ua, r.remoteClient))
	}
	if r.cfg.EnableAlbumArt {
		probes = append(probes, newAlbumArtProbe(r.remoteClient))
	}
	return probes
}

// Close stops the background queues. Pending jobs are abandoned.
func (r *Resolver) Close() {
	close(r.quit)
	r.wg.Wait()
}

// CoverGet is the public entry point: it asynchronously
// resolves a cover for query and invokes cb exactly once, either with a
// CoverInfo holding one reference the caller must Release, or nil.
func (r *Resolver) CoverGet(query *Query, cb func(*CoverInfo)) {
	job := &resolveJob{
		query:      query,
		generation: atomic.AddInt64(&r.generation, 1),
	}
	r.callbacks.store(job, cb)
	select {
	case r.submissionCh <- job:
	case <-r.quit:
		r.callbacks.delete(job)
		cb(nil)
	}
}

// Reset aborts every in-flight job with generation<=the new cancel_at
// at its next checkpoint, and swaps in a fresh shared HTTP client (see
// remoteClient.abortAll); HTTP requests already in progress run to
// completion, and their results are dropped at the pre-publish check.
func (r *Resolver) Reset() {
	gen := atomic.LoadInt64(&r.generation)
	atomic.StoreInt64(&r.cancelAt, gen)
	r.remoteClient.abortAll()
	r.notifyListeners(Event{Kind: SettingsDidChange})
}

func (r *Resolver) isCancelledGeneration(gen int64) bool {
	return gen <= atomic.LoadInt64(&r.cancelAt)
}

// AddListener registers fn for orchestrator events, up to
// listenerMax registrations, and returns an id for later removal.
func (r *Resolver) AddListener(fn Listener, userdata interface{}) (id int64, ok bool) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	if len(r.listeners) >= listenerMax {
		return 0, false
	}
	r.nextListener++
	id = r.nextListener
	r.listeners = append(r.listeners, registeredListener{id: id, fn: fn, userdata: userdata})
	return id, true
}

// RemoveListener unregisters the listener previously returned by AddListener.
func (r *Resolver) RemoveListener(id int64) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *Resolver) notifyListeners(ev Event) {
	r.listenersMu.Lock()
	ls := make([]registeredListener, len(r.listeners))
	copy(ls, r.listeners)
	r.listenersMu.Unlock()

	for _, l := range ls {
		l.fn(ev, l.userdata)
	}
}

// CoverInfoRelease releases the reference a CoverGet callback received.
func (r *Resolver) CoverInfoRelease(ci *CoverInfo) {
	if ci != nil {
		ci.Release()
	}
}

// --- submission queue: strictly serialized bookkeeping ---

func (r *Resolver) runSubmissionQueue() {
	defer r.wg.Done()
	for {
		select {
		case job := <-r.submissionCh:
			r.handleSubmission(job)
		case <-r.quit:
			return
		}
	}
}

func (r *Resolver) handleSubmission(job *resolveJob) {
	cb, _ := r.callbacks.load(job)
	r.callbacks.delete(job)

	if r.isCancelledGeneration(job.generation) {
		cb(nil)
		return
	}

	group, created := r.squasher.submit(job.query, cb)
	if !created {
		return // absorbed into an existing group; its owner drives completion
	}
	job.group = group

	select {
	case r.processCh <- job:
	case <-r.quit:
		r.squasher.complete(group, nil)
	}
}

// --- process queue: materializes a CoverInfo, consults LRU/squasher ---

func (r *Resolver) runProcessQueue() {
	defer r.wg.Done()
	for {
		select {
		case job := <-r.processCh:
			r.handleProcess(job)
		case <-r.quit:
			return
		}
	}
}

func (r *Resolver) handleProcess(job *resolveJob) {
	if r.isCancelledGeneration(job.generation) {
		r.squasher.complete(job.group, nil)
		return
	}

	key := job.query.Track.URI
	if ci := r.lru.lookup(key); ci != nil {
		r.squasher.complete(job.group, ci)
		ci.Release() // lookup's +1 is handed to complete's own +1 per callback
		return
	}

	r.wg.Add(1)
	select {
	case r.fetchSem <- struct{}{}:
		go r.handleFetch(job)
	case <-r.quit:
		r.wg.Done()
		r.squasher.complete(job.group, nil)
	}
}

// --- fetch queue: concurrent, bounded, runs the blocking probe chain ---

func (r *Resolver) handleFetch(job *resolveJob) {
	defer func() { <-r.fetchSem; r.wg.Done() }()

	if r.isCancelledGeneration(job.generation) {
		r.squasher.complete(job.group, nil)
		return
	}

	ci := r.resolve(context.Background(), job)
	if ci != nil && r.isCancelledGeneration(job.generation) {
		ci.Release() // cancelled while resolving: publish "no cover"
		ci = nil
	}
	if ci != nil {
		r.lru.insert(ci)
	}
	r.squasher.complete(job.group, ci)
	if ci != nil {
		ci.Release() // squasher's complete takes its own references per member
	}
}

// resolve runs the cover-resolution chain for one query, returning a
// CoverInfo with one reference (or nil on cancellation).
//
// The disk cache is consulted first, immediately after the cache path
// is known: a cached cover or a negative placeholder short-circuits
// the whole chain so that a track already resolved once is never
// re-scanned or re-parsed again while its result remains cached. A
// placeholder older than RecheckAfter (when that is set) counts as a
// miss. Only a cache miss falls through to the sibling scan,
// embedded-tag probes and finally remote lookups.
func (r *Resolver) resolve(ctx context.Context, job *resolveJob) *CoverInfo {
	q := job.query
	track := q.Track
	artist, _ := track.Field("artist")
	album, _ := track.Field("album")
	title, _ := track.Field("title")
	uri := track.URI

	ci := NewCoverInfo(uri, artist, album, title)

	cachePath, cacheErr := r.diskCache.Path(artist, album, uri)
	cacheUsable := !r.cfg.DisableCache && cacheErr == nil

	if cacheUsable {
		if exists, placeholder, err := r.diskCache.Lookup(cachePath); err == nil && exists {
			if !placeholder {
				ci.ImageFilename = cachePath
				ci.CoverFound = true
				return ci
			}
			info, statErr := os.Stat(cachePath)
			if r.cfg.RecheckAfter <= 0 || statErr != nil || time.Since(info.ModTime()) < r.cfg.RecheckAfter {
				return r.failWithoutPlaceholder(ci)
			}
		}
	}

	local := uriScheme(uri) == "" || uriScheme(uri) == "file"

	// sibling scan
	if local && r.cfg.EnableLocalFolder {
		if path, ok, err := r.sibling.probe(ctx, uri); err == nil && ok {
			ci.ImageFilename = path
			ci.CoverFound = true
			return ci
		} else if isCancelled(err) {
			return nil
		}
	}

	// embedded tag probes
	if local && r.cfg.EnableEmbedded && q.Flags&FlagNoEmbedded == 0 {
		for _, p := range r.tagProbes {
			res, err := p.probe(ctx, uri, cachePath, r.cfg.DisableCache)
			if isCancelled(err) {
				return nil
			}
			if err != nil {
				log.WithFields(map[string]interface{}{"probe": p.name()}).Debug("tag probe failed, continuing chain")
				continue
			}
			if res.Found {
				r.fillFromResult(ci, cachePath, res)
				return ci
			}
		}
	}

	// web lookups
	if q.Flags&FlagNoRemote == 0 && len(r.remoteProbes) > 0 {
		probes := r.remoteProbes
		if strings.EqualFold(filepath.Ext(uri), ".ay") {
			probes = nil
			if r.cfg.EnableWoS {
				probes = []remoteProbe{newWoSProbe(r.remoteClient)}
			}
		}
		// An unusable cache path tells the probe to hand back a Blob
		// instead of writing to disk, same as the embedded-tag probes'
		// disableCache flag.
		remoteCachePath := cachePath
		if !cacheUsable {
			remoteCachePath = ""
		}
		res, err := runRemoteProbes(ctx, probes, artist, album, title, remoteCachePath)
		if isCancelled(err) {
			return nil
		}
		if res.Found {
			r.fillFromResult(ci, remoteCachePath, res)
			r.maybeSaveToMusicFolder(uri, ci.ImageFilename, res)
			return ci
		}
	}

	// total failure -> negative placeholder, if caching is usable
	if cacheUsable {
		_ = r.diskCache.WritePlaceholder(cachePath)
	}
	ci.CoverFound = false
	return ci
}

func (r *Resolver) fillFromResult(ci *CoverInfo, cachePath string, res ProbeResult) {
	ci.CoverFound = true
	if len(res.Blob) > 0 {
		ci.Blob = res.Blob
		ci.BlobOffset = res.BlobOffset
		ci.BlobSize = res.BlobSize
		return
	}
	ci.ImageFilename = cachePath
	ci.BlobSize = res.BlobSize
}

// failWithoutPlaceholder ends the probe chain with "not found" without
// writing a placeholder: used for a previously cached placeholder hit,
// where one already exists on disk.
func (r *Resolver) failWithoutPlaceholder(ci *CoverInfo) *CoverInfo {
	ci.CoverFound = false
	return ci
}

// maybeSaveToMusicFolder copies a remote hit alongside the track as
// cover.jpg, if enabled and nothing is already there. The bytes come
// from res.Blob, or from imagePath when the probe wrote to the disk cache.
func (r *Resolver) maybeSaveToMusicFolder(trackURI, imagePath string, res ProbeResult) {
	if !r.cfg.SaveToMusicFolders {
		return
	}
	data := res.Blob
	if len(data) == 0 && imagePath != "" {
		data, _ = os.ReadFile(imagePath)
	}
	if len(data) == 0 {
		return
	}
	if uriScheme(trackURI) != "" && uriScheme(trackURI) != "file" {
		return
	}
	dest := filepath.Join(filepath.Dir(trackURI), "cover.jpg")
	if _, err := os.Stat(dest); err == nil {
		return
	}
	_ = os.WriteFile(dest, data, 0644)
}

// callbackMap stashes each job's completion callback, keyed by the job
// pointer, so the submission queue can look it up before enrolling the
// job into the squasher.
type callbackMap struct {
	mu sync.Mutex
	m  map[*resolveJob]func(*CoverInfo)
}

func newCallbackMap() *callbackMap {
	return &callbackMap{m: make(map[*resolveJob]func(*CoverInfo))}
}

func (c *callbackMap) store(job *resolveJob, cb func(*CoverInfo)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[job] = cb
}

func (c *callbackMap) load(job *resolveJob) (func(*CoverInfo), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.m[job]
	return cb, ok
}

func (c *callbackMap) delete(job *resolveJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, job)
}
