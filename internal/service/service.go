package service

import (
	"context"
	"io"
	"time"

	"bambu_bridge/internal/bambu"
	"bambu_bridge/internal/ftps"
	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/models"
	"bambu_bridge/internal/repository"
	"bambu_bridge/internal/state"
)

// DeviceLink is the command side of the printer session.
type DeviceLink interface {
	Publish(req bambu.Request) error
	PublishAll(reqs []bambu.Request) error
	Connected() bool
}

// RemoteFS is the printer's FTPS storage.
type RemoteFS interface {
	ListDirectory(rel string) ([]models.RemoteFileEntry, error)
	Upload(r io.Reader, relName string) error
	Delete(relName string) error
}

// Printer exposes control operations routed to the device link.
type Printer interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context) error
	StartPrint(ctx context.Context, filename string) error
	RunScript(ctx context.Context, script string) error
	SetFanSpeed(ctx context.Context, fan string, speed any) error
	SetHeaterTemperature(ctx context.Context, heater string, target float64, wait bool) error
	SetLight(ctx context.Context, on bool) error
	Connected() bool
}

// Files bridges Moonraker's file surfaces onto the FTPS storage plus the
// canned config root.
type Files interface {
	Roots() []map[string]any
	FlatList(ctx context.Context, root string) ([]map[string]any, error)
	Directory(ctx context.Context, path string) (map[string]any, error)
	Metadata(filename string) map[string]any
	Upload(ctx context.Context, filename string, r io.Reader, size int64) (map[string]any, error)
	Delete(ctx context.Context, filename string) error
	ConfigFile(name string) (string, bool)
}

// History exposes the persisted job log.
type History interface {
	List(ctx context.Context, f repository.JobFilter) (map[string]any, error)
	Totals(ctx context.Context) (models.JobTotals, error)
}

// Database exposes the namespaced key-value store.
type Database interface {
	GetItem(ctx context.Context, namespace, key string) (any, error)
	PostItem(ctx context.Context, namespace, key string, value any) (any, error)
	DeleteItem(ctx context.Context, namespace, key string) (any, error)
	ListNamespaces(ctx context.Context) ([]string, error)
}

// Access covers login and short-lived token issuance.
type Access interface {
	CreateUser(ctx context.Context, username, password string) (int, error)
	Login(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (string, error)
	OneshotToken() (string, int64)
}

// Webcams manages dashboard camera entries.
type Webcams interface {
	List(ctx context.Context) ([]map[string]any, error)
	Upsert(ctx context.Context, params map[string]any) (map[string]any, error)
	Remove(ctx context.Context, uid string) (map[string]any, error)
}

type Service struct {
	Printer
	Files
	History
	Database
	Access
	Webcams
}

// Config carries the service-level knobs read from viper in main.
type Config struct {
	// Serial empty means no hardware; file listings fall back to a mock.
	Serial       string
	FileCacheTTL time.Duration
	SigningKey   string
	TokenTTL     time.Duration
}

type Deps struct {
	Link   DeviceLink
	Store  *state.Store
	Remote RemoteFS
	Repos  *repository.Repository
	// Echo pushes locally originated state changes through the same
	// apply/broadcast path as device telemetry.
	Echo func(state.Update)
	Cfg  Config
	Log  *logger.Logger
}

func NewService(d Deps) *Service {
	webcams := NewWebcamService(d.Repos.Namespaces)
	return &Service{
		Printer:  NewPrinterService(d.Link, d.Echo, d.Log),
		Files:    NewFileService(d.Remote, d.Repos.FileCache, d.Cfg, d.Log),
		History:  NewHistoryService(d.Repos.Jobs),
		Database: NewDatabaseService(d.Repos.Namespaces),
		Access:   NewAccessService(d.Repos.Users, d.Cfg.SigningKey, d.Cfg.TokenTTL),
		Webcams:  webcams,
	}
}

var _ RemoteFS = (*ftps.Client)(nil)
var _ DeviceLink = (*bambu.Link)(nil)
