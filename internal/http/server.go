package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"docquiz/internal/config"
	"docquiz/internal/services"
	"docquiz/internal/storage"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
}

func NewServer(cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	fm, err := storage.NewFileManager(cfg.DataDir, cfg.MaxFileBytes)
	if err != nil {
		return nil, fmt.Errorf("init file manager: %w", err)
	}

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	client, err := services.NewOpenAIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("init provider client: %w", err)
	}

	llmLog, err := services.NewLLMLogger(cfg.DataDir, cfg.DebugLog)
	if err != nil {
		return nil, fmt.Errorf("init provider log: %w", err)
	}

	uploadSvc := services.NewUploadService(cfg, client)
	generateSvc := services.NewGenerateService(cfg, client, llmLog)
	pdfSvc := services.NewPDFService()
	shareSvc := services.NewShareService(cfg)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(MaxBodySize(cfg.MaxTotalBytes + 1024*1024))
	engine.Use(CORS(cfg.AllowedOrigins))

	api := NewAPI(cfg, fm, store, uploadSvc, generateSvc, pdfSvc, shareSvc)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg}, nil
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}
