// =============================================================================
// 命令服务主入口
// =============================================================================
// 独立的远程命令服务：提供命令目录与执行端点
// （DuckDuckGo 网络搜索 + 受限 Python 代码执行）
//
// 使用方法:
//
//	mcpserver                     # 默认监听 :8001
//	mcpserver --addr :9001        # 指定监听地址
// =============================================================================

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetkosiso/Multi-Agent-Assistant/internal/cmdserver"
	"github.com/meetkosiso/Multi-Agent-Assistant/internal/metrics"
	"github.com/meetkosiso/Multi-Agent-Assistant/internal/server"
)

var Version = "dev"

func main() {
	fs := flag.NewFlagSet("mcpserver", flag.ExitOnError)
	addr := fs.String("addr", ":8001", "Listen address")
	metricsAddr := fs.String("metrics-addr", ":9092", "Metrics listen address")
	pythonBin := fs.String("python", "python3", "Python interpreter for code execution")
	execTimeout := fs.Duration("exec-timeout", 30*time.Second, "Code execution timeout")
	searchResults := fs.Int("search-results", 5, "Maximum web search results")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion := fs.Bool("version", false, "Show version and exit")
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mcpserver %s\n", Version)
		return
	}

	logger := buildLogger(*logLevel)
	defer logger.Sync()

	collector := metrics.NewCollector("mcpserver", logger)

	searcher := cmdserver.NewDuckDuckGoSearcher(cmdserver.SearchConfig{
		MaxResults: *searchResults,
	}, logger)
	runner := cmdserver.NewPythonRunner(cmdserver.SandboxConfig{
		PythonBin: *pythonBin,
		Timeout:   *execTimeout,
	}, logger)

	srv := cmdserver.NewServer(searcher, runner, logger, cmdserver.WithMetrics(collector))

	manager := server.NewManager(15*time.Second, logger)
	if err := manager.Add("api", srv.Handler(), server.Config{
		Addr:         *addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: *execTimeout + 30*time.Second,
	}); err != nil {
		logger.Fatal("Failed to register server", zap.Error(err))
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", collector.Handler())
	metricsCfg := server.DefaultConfig()
	metricsCfg.Addr = *metricsAddr
	if err := manager.Add("metrics", metricsMux, metricsCfg); err != nil {
		logger.Fatal("Failed to register metrics server", zap.Error(err))
	}

	if err := manager.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("command server started",
		zap.String("version", Version),
		zap.String("addr", manager.Addr("api")),
		zap.String("metrics_addr", manager.Addr("metrics")),
		zap.String("python_bin", *pythonBin),
		zap.Duration("exec_timeout", *execTimeout))

	manager.WaitForShutdown()

	logger.Info("command server stopped")
}

func buildLogger(level string) *zap.Logger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
