package render

import (
	"bytes"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type blob struct {
	data []byte
	mime string
}

// ObjectURLs issues blob: URIs for in-memory images and keeps them alive
// until revoked.
type ObjectURLs struct {
	origin string

	mu    sync.RWMutex
	blobs map[string]blob
}

// NewObjectURLs returns a registry whose URIs look like blob:<origin>/<uuid>.
func NewObjectURLs(origin string) *ObjectURLs {
	return &ObjectURLs{
		origin: strings.TrimSuffix(origin, "/"),
		blobs:  make(map[string]blob),
	}
}

// Create registers a copy of data and returns its URI. The copy keeps a
// shared fetch window from being retained by the blob.
func (o *ObjectURLs) Create(data []byte, mime string) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	id := uuid.NewString()
	o.mu.Lock()
	o.blobs[id] = blob{data: bytes.Clone(data), mime: mime}
	o.mu.Unlock()
	return "blob:" + o.origin + "/" + id
}

// ID extracts the identifier from a URI issued by this registry.
func (o *ObjectURLs) ID(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "blob:"+o.origin+"/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// Lookup returns the data behind an identifier.
func (o *ObjectURLs) Lookup(id string) ([]byte, string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.blobs[id]
	return b.data, b.mime, ok
}

// Revoke releases a single URI. Unknown URIs are ignored.
func (o *ObjectURLs) Revoke(uri string) bool {
	id, ok := o.ID(uri)
	if !ok {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.blobs[id]; !ok {
		return false
	}
	delete(o.blobs, id)
	return true
}

// RevokeAll releases every URI and returns how many were active.
func (o *ObjectURLs) RevokeAll() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.blobs)
	o.blobs = make(map[string]blob)
	return n
}

// Len returns the number of active URIs.
func (o *ObjectURLs) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.blobs)
}

// Bytes returns the total size of the registered blobs.
func (o *ObjectURLs) Bytes() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var n int64
	for _, b := range o.blobs {
		n += int64(len(b.data))
	}
	return n
}
