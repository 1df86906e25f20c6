package importer

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/resilience"
)

// Downloader fetches remote import sources.
type Downloader struct {
	client  *http.Client
	timeout time.Duration
	retry   resilience.Policy
}

// NewDownloader creates a Downloader. timeout bounds each HTTP request and
// each FTP dial.
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retry := resilience.Exponential(3, 500*time.Millisecond)
	retry.OnRetry = resilience.Logged("import", "download")
	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		retry:   retry,
	}
}

// Fetch makes source available as a local file. Local paths are returned
// unchanged; http(s) and ftp URLs are downloaded into dir. The returned
// name keeps the source extension so the format can be inferred.
func (d *Downloader) Fetch(ctx context.Context, source, dir string) (string, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path, including Windows drive letters.
		if _, err := os.Stat(source); err != nil {
			return "", eris.Wrapf(err, "import: source %s", source)
		}
		return source, nil
	}

	dest := filepath.Join(dir, "source"+strings.ToLower(filepath.Ext(u.Path)))
	switch u.Scheme {
	case "http", "https":
		err = resilience.Do(ctx, d.retry, func(ctx context.Context) error {
			return d.fetchHTTP(ctx, source, dest)
		})
	case "ftp":
		err = d.fetchFTP(ctx, u, dest)
	default:
		return "", eris.Errorf("import: unsupported source scheme %q", u.Scheme)
	}
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (d *Downloader) fetchHTTP(ctx context.Context, source, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return eris.Wrap(err, "import: build request")
	}
	req.Header.Set("User-Agent", "careaudit-cli/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return resilience.Transient(eris.Wrap(err, "import: http get"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("import: http get %s: status %d", source, resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return resilience.Transient(err, resp.StatusCode)
		}
		return err
	}
	n, err := writeFile(dest, resp.Body)
	if err != nil {
		return err
	}
	zap.L().Info("import: downloaded", zap.String("source", source), zap.Int64("bytes", n))
	return nil
}

// ftpHost returns host:port for an ftp URL, defaulting to port 21.
func ftpHost(u *url.URL) (string, error) {
	if u.Path == "" || u.Path == "/" {
		return "", eris.New("import: empty path in ftp url")
	}
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	return host, nil
}

func (d *Downloader) fetchFTP(ctx context.Context, u *url.URL, dest string) error {
	host, err := ftpHost(u)
	if err != nil {
		return err
	}
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(d.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "import: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	user, pass := "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return eris.Wrap(err, "import: ftp login")
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return eris.Wrap(err, "import: ftp retrieve")
	}
	defer resp.Close() //nolint:errcheck

	n, err := writeFile(dest, resp)
	if err != nil {
		return err
	}
	zap.L().Info("import: downloaded", zap.String("host", u.Host), zap.String("path", u.Path), zap.Int64("bytes", n))
	return nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "import: create file")
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close() //nolint:errcheck
		return n, eris.Wrap(err, "import: write file")
	}
	return n, eris.Wrap(f.Close(), "import: close file")
}
