package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/config"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/services"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/settings"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/storage"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
}

func NewServer(cfg config.Config, st *settings.Store, log *logrus.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	fm := storage.NewFileManager(cfg.MaxUploadBytes)
	reportSvc := services.NewReportService()
	shareSvc := services.NewShareService(cfg)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(MaxBodySize(cfg.MaxUploadBytes))
	engine.Use(CORS())

	api := NewAPI(cfg, fm, st, reportSvc, shareSvc, log)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg}, nil
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}
