package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/meetkosiso/Multi-Agent-Assistant/agent"
	"github.com/meetkosiso/Multi-Agent-Assistant/api/handlers"
	"github.com/meetkosiso/Multi-Agent-Assistant/config"
	"github.com/meetkosiso/Multi-Agent-Assistant/internal/metrics"
	"github.com/meetkosiso/Multi-Agent-Assistant/internal/server"
	"github.com/meetkosiso/Multi-Agent-Assistant/mcp"
	"github.com/meetkosiso/Multi-Agent-Assistant/providers/ollama"
	"github.com/meetkosiso/Multi-Agent-Assistant/workflow"
)

// startupTimeout bounds the initial command catalog fetch.
const startupTimeout = 30 * time.Second

// Server 组装所有组件：模型提供商、命令客户端、工作流图和 HTTP 服务
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	provider  *ollama.Provider
	commands  *mcp.Client
	manager   *server.Manager
	cancel    context.CancelFunc
}

// NewServer 创建服务器（不建立网络连接）
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	collector := metrics.NewCollector("assistant", logger)

	provider := ollama.NewProvider(ollama.Config{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.Timeout,
	}, logger)

	commands := mcp.NewClient(mcp.Config{
		BaseURL:    cfg.CommandServer.BaseURL,
		APIVersion: cfg.CommandServer.APIVersion,
		Timeout:    cfg.CommandServer.Timeout,
	}, logger)

	return &Server{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		provider:  provider,
		commands:  commands,
		manager:   server.NewManager(cfg.Server.ShutdownTimeout, logger),
	}
}

// Start 获取命令目录、构建工作流并启动 HTTP 监听
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	deriveCtx, deriveCancel := context.WithTimeout(ctx, startupTimeout)
	defer deriveCancel()

	remoteTools, err := mcp.DeriveTools(deriveCtx, s.commands)
	if err != nil {
		return fmt.Errorf("derive tools: %w", err)
	}
	tools := make([]agent.Tool, 0, len(remoteTools))
	for _, t := range remoteTools {
		tools = append(tools, t)
		s.logger.Info("tool registered", zap.String("name", t.Name()))
	}

	graph, err := workflow.NewDefaultGraph(s.provider, tools, s.logger,
		workflow.WithMetrics(s.collector),
		workflow.WithMaxIterations(s.cfg.Workflow.MaxIterations))
	if err != nil {
		return fmt.Errorf("build workflow: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/assist", handlers.NewAssistHandler(graph, s.logger))
	mux.Handle("/health", handlers.NewHealthHandler(s.logger).WithCheck("ollama", s.provider))

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger, s.collector),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	apiHandler := Chain(mux, middlewares...)

	if err := s.manager.Add("api", apiHandler, server.Config{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}); err != nil {
		return err
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", s.collector.Handler())
	if err := s.manager.Add("metrics", metricsMux, server.Config{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: 30 * time.Second,
	}); err != nil {
		return err
	}

	if err := s.manager.Start(); err != nil {
		return err
	}

	s.logger.Info("assistant started",
		zap.String("api_addr", s.manager.Addr("api")),
		zap.String("metrics_addr", s.manager.Addr("metrics")),
		zap.String("model", s.cfg.Ollama.Model),
		zap.String("command_server", s.cfg.CommandServer.BaseURL),
		zap.Int("tools", len(tools)),
		zap.Int("max_iterations", s.cfg.Workflow.MaxIterations))

	return nil
}

// WaitForShutdown 阻塞直到收到退出信号或服务出错
func (s *Server) WaitForShutdown() {
	s.manager.WaitForShutdown()
	if s.cancel != nil {
		s.cancel()
	}
}
