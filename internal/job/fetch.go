package job

import (
	"context"
	"fmt"

	"github.com/sells-group/btg-sync/internal/btg"
	"github.com/sells-group/btg-sync/internal/route"
)

// DownloadError wraps a failure fetching one result file. It is isolated to
// that file: sibling files in the same download list still process.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("job: download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Fetch retrieves one result file's bytes using the route's download auth.
// Relative paths resolve against the client's base URL.
func Fetch(ctx context.Context, client *btg.Client, r route.Route, ref FileRef) ([]byte, error) {
	data, err := client.Download(ctx, r, ref.URL)
	if err != nil {
		return nil, &DownloadError{URL: ref.URL, Err: err}
	}
	return data, nil
}
