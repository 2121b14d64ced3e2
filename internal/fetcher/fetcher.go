// Package fetcher opens the remote and local resources the dashboard loads at startup.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Opener returns a reader for a resource named by URL or local path.
type Opener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, error)
}

// Multi dispatches on the source scheme: http(s) and ftp go to their
// fetchers, anything else is read from the local filesystem.
type Multi struct {
	HTTP *HTTPFetcher
	FTP  *FTPFetcher
}

// NewMulti creates a Multi with fetchers built from the given options.
func NewMulti(httpOpts HTTPOptions, ftpOpts FTPOptions) *Multi {
	return &Multi{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

// Open implements Opener.
func (m *Multi) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	switch Scheme(source) {
	case "http", "https":
		if m.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher configured for %s", source)
		}
		return m.HTTP.Download(ctx, source)
	case "ftp":
		if m.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher configured for %s", source)
		}
		return m.FTP.Download(ctx, source)
	default:
		return OpenFile(source)
	}
}

// Scheme returns the lower-cased URL scheme of source, or "" for local paths.
// Windows drive letters ("C:\data.csv") are treated as local paths.
func Scheme(source string) string {
	u, err := url.Parse(source)
	if err != nil || len(u.Scheme) < 2 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// OpenFile opens a local file, accepting an optional file:// prefix.
func OpenFile(source string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(source, "file://")
	if path == "" {
		return nil, eris.New("fetcher: empty source")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", path)
	}
	zap.L().Debug("fetcher: opened local file", zap.String("path", path))
	return f, nil
}

// ToFile copies a resource to path and returns the number of bytes written.
func ToFile(ctx context.Context, o Opener, source, path string) (int64, error) {
	body, err := o.Open(ctx, source)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}
	return n, nil
}
