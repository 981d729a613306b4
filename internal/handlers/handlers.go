package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"wastemon/api/internal/cache"
	"wastemon/api/internal/config"
	"wastemon/api/internal/middleware"
	"wastemon/api/internal/repository"
	"wastemon/api/internal/security"
	"wastemon/api/internal/service"
	"wastemon/api/internal/storage"
)

type HandlerSet struct {
	log            zerolog.Logger
	cfg            *config.AppConfig
	authService    *service.AuthService
	processService *service.ProcessService
	reportService  *service.ReportService
	db             *pgxpool.Pool
	cache          *redis.Client
	sessions       *repository.SessionRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cacheClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	containerRepo := repository.NewContainerRepository(db)
	costRepo := repository.NewCostRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	processRepo := repository.NewProcessRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewExportAuditRepository(db)

	snapshots := cache.NewExportSnapshotStore(cacheClient, cfg.Export.SnapshotTTL)
	codec := security.NewProcessTokenCodec(cfg.Process.TokenSecret, cfg.Process.TokenTTL)

	auth := service.NewAuthService(userRepo, sessionRepo, cfg.Security, log)
	process := service.NewProcessService(containerRepo, costRepo, readingRepo, processRepo, codec, cfg.Process, log)
	report := service.NewReportService(reportRepo, snapshots, auditRepo, store, log)

	return HandlerSet{
		log:            log,
		cfg:            cfg,
		authService:    auth,
		processService: process,
		reportService:  report,
		db:             db,
		cache:          cacheClient,
		sessions:       sessionRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	gate := middleware.Authenticate(h.sessions, h.cfg.Security.JWTSecret,
		h.cfg.Security.SessionInactivity, h.log)
	changeGate := middleware.AuthenticateChange(h.sessions, h.cfg.Security.JWTSecret,
		h.cfg.Security.SessionInactivity, h.log)

	auth := router.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)
	auth.POST("/cambiar-password-obligatorio", changeGate, h.ChangePasswordForced)
	auth.POST("/reconfirmar-password", changeGate, h.ReconfirmPassword)

	proceso := router.Group("/proceso")
	proceso.Use(gate)
	proceso.POST("/iniciar", h.StartProcess)
	proceso.GET("/costo-global", h.GlobalCost)
	proceso.POST("/costo-global",
		middleware.RequireRoles("administrador", "supervisor"), h.SetGlobalCost)
	proceso.POST("/calculo", h.ComputeProcess)
	proceso.POST("/recoleccion/preview", h.PreviewPending)
	proceso.POST("/recoleccion", h.CommitCollection)
	proceso.POST("/cancelar", h.CancelProcess)

	historial := router.Group("/historial")
	historial.Use(gate)
	historial.GET("/recoleccion", h.SearchHistory)
	historial.GET("/recoleccion/export/pdf", h.ExportHistoryPDF)
	historial.GET("/recoleccion/export/excel", h.ExportHistoryExcel)
}
