package jukebox

// DownloadFailedError is the single opaque failure the Fetcher returns. Only
// the stringified cause survives; the original error is not wrapped.
type DownloadFailedError struct {
	Message string
}

func (e *DownloadFailedError) Error() string {
	return e.Message
}

func downloadFailed(err error) *DownloadFailedError {
	if err == nil {
		return &DownloadFailedError{Message: "unknown error"}
	}
	return &DownloadFailedError{Message: err.Error()}
}
