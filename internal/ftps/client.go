// Package ftps talks to the printer's implicit-TLS file-transfer service.
// The TLS handshake happens immediately on connect, before any plaintext
// exchange; the device does not speak the upgrade-after-connect variant.
package ftps

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"strings"
	"sync"
	"time"

	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/models"

	"github.com/jlaffaye/ftp"
)

// conn is the slice of the FTP session the client uses. *ftp.ServerConn
// satisfies it; tests substitute a fake server.
type conn interface {
	List(path string) ([]*ftp.Entry, error)
	NameList(path string) ([]string, error)
	FileSize(path string) (int64, error)
	Stor(path string, r io.Reader) error
	Delete(path string) error
	MakeDir(path string) error
	NoOp() error
	Quit() error
}

type dialFunc func(cfg Config) (conn, error)

// Config carries the file-transfer session parameters. BasePath roots all
// operations (the device default differs from the FTP convention of "/").
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	BasePath string
	Timeout  time.Duration
}

// Vendor-internal housekeeping directories, hidden from dashboards.
var internalDirs = map[string]bool{
	"logger":           true,
	"recorder":         true,
	"image":            true,
	"ipcam":            true,
	"timelapse":        true,
	"cache":            true,
	"language":         true,
	"model":            true,
	"corelogger":       true,
	"verify_job":       true,
	".Spotlight-V100":  true,
	".fseventsd":       true,
}

// Client owns the vendor file-transfer session. Operations are blocking,
// synchronous network calls; the mutex serializes them on the single
// control connection, which also bounds their concurrency so callers on
// request goroutines can never pile onto the device.
type Client struct {
	cfg  Config
	log  *logger.Logger
	dial dialFunc

	mu   sync.Mutex
	conn conn
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 990
	}
	if cfg.User == "" {
		cfg.User = "bblp"
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, log: log, dial: dialImplicitTLS}
}

func dialImplicitTLS(cfg Config) (conn, error) {
	c, err := ftp.Dial(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		// DialWithTLS wraps the socket before the first response is read:
		// implicit mode, as the device requires.
		ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}),
		ftp.DialWithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("ftps dial %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	if err := c.Login(cfg.User, cfg.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("ftps login: %w", err)
	}
	return c, nil
}

// ensure probes the cached session with a no-op and reconnects when the
// probe fails. Callers must hold c.mu.
func (c *Client) ensure() error {
	if c.conn != nil {
		if err := c.conn.NoOp(); err == nil {
			return nil
		}
		c.discard()
	}
	c.log.Infow("opening ftps session", "host", c.cfg.Host, "port", c.cfg.Port)
	conn, err := c.dial(c.cfg)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// discard drops the cached session. Callers must hold c.mu.
func (c *Client) discard() {
	if c.conn != nil {
		_ = c.conn.Quit()
		c.conn = nil
	}
}

func (c *Client) remotePath(rel string) string {
	joined := path.Join(c.cfg.BasePath, rel)
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// ListDirectory lists one directory under the base path. A structured
// listing is attempted first; if the server rejects it (firmware
// limitation), the plain-name fallback kicks in.
func (c *Client) ListDirectory(rel string) ([]models.RemoteFileEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return nil, err
	}

	dir := c.remotePath(rel)
	entries, err := c.conn.List(dir)
	if err != nil {
		if !isServerRejection(err) {
			c.discard()
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		c.log.Infow("structured listing rejected, using name fallback", "path", dir)
		return c.fallbackList(dir)
	}

	out := make([]models.RemoteFileEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." || internalDirs[e.Name] {
			continue
		}
		modified := float64(e.Time.Unix())
		if e.Time.IsZero() {
			modified = float64(time.Now().Unix())
		}
		out = append(out, models.RemoteFileEntry{
			Name:     e.Name,
			IsDir:    e.Type == ftp.EntryTypeFolder,
			Size:     int64(e.Size),
			Modified: modified,
		})
	}
	return out, nil
}

// fallbackList handles firmware that only speaks NLST: one entry per raw
// name, with a per-name size probe. A name whose probe fails and that has
// no file-extension-like suffix is classified as a directory. Callers must
// hold c.mu with a live session.
func (c *Client) fallbackList(dir string) ([]models.RemoteFileEntry, error) {
	names, err := c.conn.NameList(dir)
	if err != nil {
		c.discard()
		return nil, fmt.Errorf("name list %s: %w", dir, err)
	}

	now := float64(time.Now().Unix())
	out := make([]models.RemoteFileEntry, 0, len(names))
	for _, name := range names {
		name = path.Base(name)
		if name == "." || name == ".." || internalDirs[name] {
			continue
		}

		entry := models.RemoteFileEntry{Name: name, Modified: now}
		size, err := c.conn.FileSize(path.Join(dir, name))
		switch {
		case err == nil:
			entry.Size = size
		case path.Ext(name) == "":
			entry.IsDir = true
		}
		out = append(out, entry)
	}
	return out, nil
}

// Upload streams a file to the printer, creating intermediate directories
// idempotently. The device has been observed to time out the control
// connection exactly at transfer completion even though the data was fully
// written; that is reclassified as success and the session is discarded so
// the next operation reconnects cleanly.
func (c *Client) Upload(r io.Reader, relName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return err
	}

	target := c.remotePath(relName)
	c.ensureRemoteDirs(target)

	c.log.Infow("uploading file", "target", target)
	if err := c.conn.Stor(target, r); err != nil {
		c.discard()
		if isTimeout(err) {
			c.log.Infow("upload timed out at close, treating as success", "target", target)
			return nil
		}
		return fmt.Errorf("upload %s: %w", target, err)
	}
	return nil
}

// ensureRemoteDirs creates each parent of target, ignoring already-exists
// faults. Callers must hold c.mu with a live session.
func (c *Client) ensureRemoteDirs(target string) {
	parts := strings.Split(strings.Trim(target, "/"), "/")
	if len(parts) <= 1 {
		return
	}
	current := ""
	for _, part := range parts[:len(parts)-1] {
		current += "/" + part
		_ = c.conn.MakeDir(current)
	}
}

// Delete removes one file; failures propagate.
func (c *Client) Delete(relName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return err
	}
	target := c.remotePath(relName)
	c.log.Infow("deleting file", "target", target)
	if err := c.conn.Delete(target); err != nil {
		return fmt.Errorf("delete %s: %w", target, err)
	}
	return nil
}

// isServerRejection reports whether err is an FTP status reply (as opposed
// to a transport fault), which is how the firmware refuses MLSD.
func isServerRejection(err error) bool {
	var proto *textproto.Error
	return errors.As(err, &proto)
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
