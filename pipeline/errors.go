package pipeline

import "fmt"

// DownloadError reports a failure acquiring the source audio. It occurs
// before the pipeline proper is entered; no partial result is produced.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed for %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// DecodeError reports unreadable or unsupported audio. Fatal for the
// request; the pipeline aborts without a partial result.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio decode failed for %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
