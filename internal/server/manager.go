package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config 单个 HTTP 服务配置
type Config struct {
	// 监听地址
	Addr string `yaml:"addr" json:"addr"`

	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// 最大请求头大小
	MaxHeaderBytes int `yaml:"max_header_bytes" json:"max_header_bytes"`
}

// DefaultConfig 返回默认服务配置
func DefaultConfig() Config {
	return Config{
		Addr:           ":8000",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
}

type entry struct {
	name     string
	server   *http.Server
	listener net.Listener
}

// Manager 管理进程内的一组 HTTP 服务（API、metrics 等），
// 统一启动、错误上报与优雅关闭。
type Manager struct {
	mu      sync.RWMutex
	entries []*entry
	errCh   chan error
	logger  *zap.Logger
	started bool
	closed  bool

	shutdownTimeout time.Duration
}

// NewManager 创建服务器管理器
func NewManager(shutdownTimeout time.Duration, logger *zap.Logger) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		errCh:           make(chan error, 4),
		logger:          logger.With(zap.String("component", "http_server")),
		shutdownTimeout: shutdownTimeout,
	}
}

// Add 注册一个待启动的 HTTP 服务。必须在 Start 之前调用。
func (m *Manager) Add(name string, handler http.Handler, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot add %q: manager already started", name)
	}
	for _, e := range m.entries {
		if e.name == name {
			return fmt.Errorf("server %q already registered", name)
		}
	}

	m.entries = append(m.entries, &entry{
		name: name,
		server: &http.Server{
			Addr:           cfg.Addr,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
	})
	return nil
}

// Start 启动全部已注册服务（非阻塞）。任何一个监听失败则整体失败。
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("manager is closed")
	}
	if m.started {
		return fmt.Errorf("manager already started")
	}
	if len(m.entries) == 0 {
		return fmt.Errorf("no servers registered")
	}

	for _, e := range m.entries {
		listener, err := net.Listen("tcp", e.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s for %q: %w", e.server.Addr, e.name, err)
		}
		e.listener = listener
		m.logger.Info("starting HTTP server",
			zap.String("name", e.name),
			zap.String("addr", listener.Addr().String()))
		go m.serve(e, listener)
	}

	m.started = true
	return nil
}

func (m *Manager) serve(e *entry, listener net.Listener) {
	if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("HTTP server failed", zap.String("name", e.name), zap.Error(err))
		select {
		case m.errCh <- fmt.Errorf("server %q: %w", e.name, err):
		default:
		}
	}
}

// Shutdown 优雅关闭全部服务
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.logger.Info("shutting down HTTP servers")

	shutdownCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()

	var errs []error
	for _, e := range m.entries {
		if e.listener == nil {
			continue
		}
		if err := e.server.Shutdown(shutdownCtx); err != nil {
			m.logger.Error("server shutdown failed", zap.String("name", e.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("server %q: %w", e.name, err))
		}
		e.listener = nil
	}

	m.logger.Info("HTTP servers stopped")
	return errors.Join(errs...)
}

// WaitForShutdown 阻塞等待关闭信号或服务异常退出，然后优雅关闭。
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-m.errCh:
		if err != nil {
			m.logger.Error("server exited unexpectedly", zap.Error(err))
		}
	}

	if err := m.Shutdown(context.Background()); err != nil {
		m.logger.Error("shutdown error", zap.Error(err))
	}
}

// Errors returns asynchronous server errors.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// Addr 返回指定服务的实际监听地址（支持 ":0" 测试端口）。
func (m *Manager) Addr(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.name == name && e.listener != nil {
			return e.listener.Addr().String()
		}
	}
	return ""
}

// IsRunning 检查管理器是否处于运行状态
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.started && !m.closed
}
