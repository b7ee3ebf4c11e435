package artwork

import (
	"net"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// remoteClient wraps the shared resty.Client used by every remote
// probe, so Reset() can swap it for a fresh one.
type remoteClient struct {
	mu     sync.Mutex
	client *resty.Client
}

func newRemoteClient() *remoteClient {
	return &remoteClient{client: buildRestyClient()}
}

func buildRestyClient() *resty.Client {
	return resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "medialib/1.0")
}

// get returns the resty client in use, for issuing a request.
func (r *remoteClient) get() *resty.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// abortAll replaces the client with a fresh one for new requests and
// closes the old client's idle connections. Requests already in
// progress on the old client are not interrupted.
func (r *remoteClient) abortAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.client
	r.client = buildRestyClient()
	if t, ok := old.GetClient().Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// isAborted reports whether err (or an error it wraps) is a net.Error
// timeout; the remote probes treat that as cancellation.
func isAborted(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if ok := asNetError(err, &nerr); ok {
		return nerr.Timeout()
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
