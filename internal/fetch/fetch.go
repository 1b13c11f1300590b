// Package fetch downloads raw upstream files over HTTP(S) or FTP into a
// local directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
)

// ErrDownload is the root of every transport failure.
var ErrDownload = errors.New("download failed")

// DownloadError reports a failed retrieval. Status is the HTTP status code
// when the server answered, 0 otherwise.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: HTTP %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() []error { return []error{ErrDownload, e.Err} }

// Fetcher retrieves url into destDir and returns the local file path.
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

// Client is the default Fetcher.
type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
	// FTPUser and FTPPassword default to anonymous login.
	FTPUser     string
	FTPPassword string
	// ReuseExisting returns a non-empty file already in destDir instead of
	// retrieving it again. Off by default: every Fetch hits upstream.
	ReuseExisting bool
	Logger        *slog.Logger
	// OnBytes, when set, is called with the size of every completed download.
	OnBytes func(n int64)
}

// NewClient returns a Client with the given per-request timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		Timeout: timeout,
		Logger:  logger,
	}
}

// FileName returns the local name a URL is stored under.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("no file name in %q", rawURL)
	}
	return name, nil
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	name, err := FileName(rawURL)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create dir failed: %w", err)
	}
	destPath := filepath.Join(destDir, name)

	if c.ReuseExisting {
		if fi, err := os.Stat(destPath); err == nil && fi.Size() > 0 {
			c.logger().Debug("already downloaded", slog.String("file", destPath))
			return destPath, nil
		}
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		body, err = c.openHTTP(ctx, rawURL)
	case "ftp":
		body, err = c.openFTP(ctx, u)
	default:
		err = &DownloadError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if err != nil {
		return "", err
	}
	defer body.Close()

	n, err := writeAtomic(destPath, body)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	if c.OnBytes != nil {
		c.OnBytes(n)
	}
	c.logger().Info("downloaded", slog.String("file", filepath.Base(destPath)), slog.Int64("bytes", n))
	return destPath, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: rawURL, Err: fmt.Errorf("HTTP GET failed: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &DownloadError{URL: rawURL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return resp.Body, nil
}

// ftpBody closes the data connection and then the control connection.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b ftpBody) Close() error {
	err := b.Response.Close()
	if qerr := b.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

func (c *Client) openFTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	addr := u.Host
	if u.Port() == "" {
		addr += ":21"
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, &DownloadError{URL: u.String(), Err: fmt.Errorf("FTP dial failed: %w", err)}
	}

	user, pass := c.FTPUser, c.FTPPassword
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, &DownloadError{URL: u.String(), Err: fmt.Errorf("FTP login failed: %w", err)}
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, &DownloadError{URL: u.String(), Err: fmt.Errorf("FTP RETR failed: %w", err)}
	}
	return ftpBody{Response: resp, conn: conn}, nil
}

func writeAtomic(destPath string, r io.Reader) (int64, error) {
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("copy failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename failed: %w", err)
	}
	return n, nil
}
