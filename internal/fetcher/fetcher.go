// Package fetcher resolves remote audit inputs into local files: http and
// ftp URLs, with zipped shapefiles extracted in place.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher downloads a remote input.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Resolve fetches rawURL into destDir and returns the local path of the
// usable input. Local paths pass through untouched. ZIP archives are
// extracted next to the download; when the archive holds a shapefile the
// .shp member path is returned.
func Resolve(ctx context.Context, rawURL, destDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse %s", rawURL)
	}

	var f Fetcher
	switch u.Scheme {
	case "", "file":
		return localPath(u, rawURL), nil
	case "http", "https":
		f = NewHTTPFetcher(HTTPOptions{})
	case "ftp":
		f = NewFTPFetcher(FTPOptions{})
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", eris.Errorf("fetcher: cannot derive file name from %s", rawURL)
	}
	dest := filepath.Join(destDir, name)

	n, err := f.DownloadToFile(ctx, rawURL, dest)
	if err != nil {
		return "", err
	}
	zap.L().Info("fetcher: downloaded input",
		zap.String("url", rawURL),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)

	if strings.EqualFold(filepath.Ext(dest), ".zip") {
		return resolveArchive(dest, destDir)
	}
	return dest, nil
}

func localPath(u *url.URL, raw string) string {
	if u.Scheme == "file" {
		return u.Path
	}
	return raw
}

func resolveArchive(zipPath, destDir string) (string, error) {
	extracted, err := ExtractZIP(zipPath, destDir)
	if err != nil {
		return "", err
	}
	if shp := FindShapefile(extracted); shp != "" {
		return shp, nil
	}
	if len(extracted) == 1 {
		return extracted[0], nil
	}
	return "", eris.Errorf("fetcher: no shapefile in %s (%d members)", zipPath, len(extracted))
}

// FindShapefile returns the first .shp path in the list, or "".
func FindShapefile(paths []string) string {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".shp") {
			return p
		}
	}
	return ""
}
