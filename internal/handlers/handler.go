package handlers

import (
	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/notify"
	"bambu_bridge/internal/service"
	"bambu_bridge/internal/state"

	"github.com/gin-gonic/gin"
)

// Handler wires the Moonraker-compatible HTTP and WebSocket surface to
// the services, the state store, and the notification hub.
type Handler struct {
	services *service.Service
	store    *state.Store
	hub      *notify.Hub
	log      *logger.Logger

	rpc map[string]rpcHandler
}

func NewHandler(services *service.Service, store *state.Store, hub *notify.Hub, log *logger.Logger) *Handler {
	h := &Handler{services: services, store: store, hub: hub, log: log}
	h.rpc = h.rpcTable()
	return h
}

// InitRoutes builds the Gin router with every route registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.corsMiddleware)

	router.GET("/", h.liveness)
	router.GET("/websocket", h.wsConnect)

	h.registerServerRoutes(router)
	h.registerPrinterRoutes(router)
	h.registerFileRoutes(router)
	h.registerDatabaseRoutes(router)
	h.registerHistoryRoutes(router)
	h.registerAccessRoutes(router)

	return router
}

func (h *Handler) registerServerRoutes(r *gin.Engine) {
	server := r.Group("/server")
	{
		server.GET("/info", h.serverInfo)
		server.GET("/temperature_store", h.temperatureStore)
	}
}

func (h *Handler) registerPrinterRoutes(r *gin.Engine) {
	printer := r.Group("/printer")
	{
		printer.GET("/info", h.printerInfo)
		printer.GET("/objects/list", h.objectsList)
		printer.GET("/objects/query", h.objectsQuery)

		print := printer.Group("/print")
		{
			print.POST("/start", h.printStart)
			print.POST("/pause", h.printPause)
			print.POST("/resume", h.printResume)
			print.POST("/cancel", h.printCancel)
		}
	}
}

func (h *Handler) registerFileRoutes(r *gin.Engine) {
	files := r.Group("/server/files")
	{
		files.GET("/list", h.fileList)
		files.GET("/directory", h.fileDirectory)
		files.POST("/upload", h.fileUpload)
		files.DELETE("/gcodes/*filepath", h.fileDelete)
		files.GET("/config/*filepath", h.configDownload)
	}
}

func (h *Handler) registerDatabaseRoutes(r *gin.Engine) {
	db := r.Group("/server/database")
	{
		db.GET("/item", h.databaseGet)
		db.POST("/item", h.databasePost)
		db.DELETE("/item", h.databaseDelete)
		db.GET("/list", h.databaseList)
	}
}

func (h *Handler) registerHistoryRoutes(r *gin.Engine) {
	history := r.Group("/server/history")
	{
		history.GET("/list", h.historyList)
		history.GET("/totals", h.historyTotals)
	}
}

func (h *Handler) registerAccessRoutes(r *gin.Engine) {
	access := r.Group("/access")
	{
		access.GET("/oneshot_token", h.oneshotToken)
		access.POST("/login", h.login)
		access.POST("/user", h.createUser)
	}
}
