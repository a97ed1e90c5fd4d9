package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/models"
	"bambu_bridge/internal/repository"
)

// Printable extensions surfaced in the flat gcodes listing.
var printableExts = []string{".gcode", ".gcode.3mf", ".3mf"}

// Fake disk usage for the virtual roots; the printer does not report real
// figures over FTPS.
var diskUsage = map[string]any{
	"total": int64(32) << 30,
	"used":  int64(1) << 30,
	"free":  int64(31) << 30,
}

// Canned Klipper config served to dashboards that probe the config root.
var configFiles = map[string]string{
	"printer.cfg": strings.Join([]string{
		"[printer]",
		"kinematics: corexy",
		"max_velocity: 500",
		"max_accel: 10000",
		"",
		"[extruder]",
		"min_temp: 0",
		"max_temp: 300",
		"nozzle_diameter: 0.4",
		"",
		"[heater_bed]",
		"min_temp: 0",
		"max_temp: 120",
		"",
		"[virtual_sdcard]",
		"path: /tmp/gcodes",
		"",
		"[display_status]",
		"",
		"[pause_resume]",
		"",
		"[gcode_macro CANCEL_PRINT]",
		"description: Cancel the actual running print",
		"gcode:",
		"  M117 Cancelled",
		"",
		"[gcode_macro PAUSE]",
		"description: Pause the actual running print",
		"gcode:",
		"  M117 Paused",
		"",
		"[gcode_macro RESUME]",
		"description: Resume the actual running print",
		"gcode:",
		"  M117 Resumed",
		"",
	}, "\n"),
}

// FileService serves Moonraker file listings from the printer's FTPS
// storage, with a sqlite-backed cache in front of the root listing.
type FileService struct {
	remote RemoteFS
	cache  repository.FileCacheRepo
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
}

func NewFileService(remote RemoteFS, cache repository.FileCacheRepo, cfg Config, log *logger.Logger) *FileService {
	return &FileService{remote: remote, cache: cache, cfg: cfg, log: log, now: time.Now}
}

func (s *FileService) Roots() []map[string]any {
	return []map[string]any{
		{"name": "gcodes", "path": "gcodes", "permissions": "rw"},
		{"name": "config", "path": "config", "permissions": "rw"},
	}
}

// ConfigFile returns the canned content for a config-root file.
func (s *FileService) ConfigFile(name string) (string, bool) {
	content, ok := configFiles[name]
	return content, ok
}

func joinRoot(root, name string) string {
	return strings.TrimRight(root, "/") + "/" + name
}

func (s *FileService) nowUnix() float64 {
	return float64(s.now().UnixNano()) / 1e9
}

// FlatList is the legacy flat listing: printable files only, paths
// prefixed with the root name.
func (s *FileService) FlatList(ctx context.Context, root string) ([]map[string]any, error) {
	switch root {
	case "config":
		out := make([]map[string]any, 0, len(configFiles))
		for name, content := range configFiles {
			out = append(out, map[string]any{
				"path":        joinRoot("config", name),
				"size":        int64(len(content)),
				"modified":    s.nowUnix(),
				"permissions": "rw",
			})
		}
		return out, nil
	case "gcodes":
	default:
		return []map[string]any{}, nil
	}

	entries, err := s.rootEntries(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !printable(e.Name) {
			continue
		}
		out = append(out, map[string]any{
			"path":        joinRoot("gcodes", e.Name),
			"size":        e.Size,
			"modified":    e.Modified,
			"permissions": "rw",
		})
	}
	return out, nil
}

func printable(name string) bool {
	for _, ext := range printableExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Directory returns the browsable listing for a virtual path, in the
// dirs/files/disk_usage shape file browsers expect.
func (s *FileService) Directory(ctx context.Context, path string) (map[string]any, error) {
	if path == "" {
		path = "gcodes"
	}
	if path == "config" {
		return s.configDirectory(), nil
	}

	var (
		entries []models.RemoteFileEntry
		err     error
	)
	switch {
	case s.cfg.Serial == "" && path == "gcodes":
		entries = mockListing()
	case path == "gcodes":
		entries, err = s.rootEntries(ctx)
	case strings.HasPrefix(path, "gcodes/"):
		// Subdirectory listings bypass the cache; only the root is cached.
		entries, err = s.remote.ListDirectory(strings.TrimPrefix(path, "gcodes/"))
	default:
		return nil, fmt.Errorf("unknown file root in path %q", path)
	}
	if err != nil {
		s.log.Errorw("file_listing_failed", "path", path, "err", err)
		entries = nil
	}

	dirs := []map[string]any{}
	files := []map[string]any{}
	for _, e := range entries {
		if e.IsDir {
			dirs = append(dirs, map[string]any{
				"dirname":     e.Name,
				"modified":    e.Modified,
				"size":        e.Size,
				"permissions": "rw",
				"path":        joinRoot(path, e.Name),
			})
		} else {
			files = append(files, map[string]any{
				"filename":    e.Name,
				"modified":    e.Modified,
				"size":        e.Size,
				"permissions": "rw",
				"path":        joinRoot(path, e.Name),
			})
		}
	}

	return map[string]any{
		"dirs":       dirs,
		"files":      files,
		"disk_usage": diskUsage,
		"root_info": map[string]any{
			"name":        "gcodes",
			"permissions": "rw",
			"path":        "gcodes",
		},
	}, nil
}

func (s *FileService) configDirectory() map[string]any {
	files := []map[string]any{}
	for name, content := range configFiles {
		files = append(files, map[string]any{
			"filename":    name,
			"modified":    s.nowUnix(),
			"size":        int64(len(content)),
			"permissions": "rw",
			"path":        joinRoot("config", name),
		})
	}
	return map[string]any{
		"dirs":       []map[string]any{},
		"files":      files,
		"disk_usage": diskUsage,
		"root_info": map[string]any{
			"name":        "config",
			"permissions": "rw",
			"path":        "config",
		},
	}
}

func mockListing() []models.RemoteFileEntry {
	return []models.RemoteFileEntry{
		{Name: "mock_file.gcode", Size: 0, Modified: float64(time.Now().Unix())},
	}
}

// rootEntries serves the gcodes root through the cache.
func (s *FileService) rootEntries(ctx context.Context) ([]models.RemoteFileEntry, error) {
	if s.cfg.Serial == "" {
		return mockListing(), nil
	}

	cached, err := s.cache.GetFresh(ctx, s.cfg.FileCacheTTL)
	if err != nil {
		s.log.Errorw("file_cache_read_failed", "err", err)
	}
	if cached != nil {
		return cached, nil
	}

	entries, err := s.remote.ListDirectory("")
	if err != nil {
		return nil, fmt.Errorf("list printer storage: %w", err)
	}
	if err := s.cache.Put(ctx, entries); err != nil {
		s.log.Errorw("file_cache_write_failed", "err", err)
	}
	return entries, nil
}

// Metadata returns slicer metadata for a file. The printer does not
// expose parsed gcode details, so the values are fixed placeholders.
func (s *FileService) Metadata(filename string) map[string]any {
	return map[string]any{
		"filename":           filename,
		"size":               1234,
		"modified":           s.nowUnix(),
		"slicer":             "BambuStudio",
		"slicer_version":     "unknown",
		"layer_height":       0.2,
		"first_layer_height": 0.2,
		"object_height":      10.0,
		"filament_total":     1000.0,
		"estimated_time":     3600,
		"thumbnails":         []any{},
	}
}

// Upload streams a file to the printer and invalidates the listing cache.
func (s *FileService) Upload(ctx context.Context, filename string, r io.Reader, size int64) (map[string]any, error) {
	if err := s.remote.Upload(r, filename); err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Errorw("file_cache_invalidate_failed", "err", err)
	}
	return map[string]any{
		"item": map[string]any{
			"path":     joinRoot("gcodes", filename),
			"size":     size,
			"modified": s.nowUnix(),
		},
		"print_started": false,
	}, nil
}

// Delete removes a file from the printer and invalidates the cache.
func (s *FileService) Delete(ctx context.Context, filename string) error {
	if err := s.remote.Delete(filename); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Errorw("file_cache_invalidate_failed", "err", err)
	}
	return nil
}
