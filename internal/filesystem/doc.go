/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Media libraries served to the artwork engines frequently live on NFS mounts.
StatWithRetry and OpenWithRetry wrap os.Stat and os.Open with exponential
backoff on ESTALE (errno 116); all other errors fail immediately.

RetryDir exposes the same behaviour as an http.FileSystem so that the engines
can read local files through a file:// transport:

	t := &http.Transport{}
	t.RegisterProtocol("file", http.NewFileTransport(filesystem.RetryDir{
	    Config: filesystem.DefaultRetryConfig(),
	}))

Default retry behaviour: 3 retries, 50ms initial backoff, 500ms cap.
*/
package filesystem
