// Package video captures still frames from video URLs.
//
// For every requested timestamp the engine consults the thumbnail cache,
// and on a miss loads the video once through a Player, seeks, grabs the
// presented frame and encodes it through package render. Timestamps in
// [0,1) are fractions of the duration; anything else is seconds.
//
// Cached entries live in a kvstore.Store under keys built by CacheKey. When
// the store reports ErrQuotaExceeded the oldest entries sharing the key
// prefix are evicted until the write fits.
package video
