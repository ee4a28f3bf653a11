package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Ollama:        DefaultOllamaConfig(),
		CommandServer: DefaultCommandServerConfig(),
		Workflow:      DefaultWorkflowConfig(),
		Log:           DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultOllamaConfig 返回默认 Ollama 配置
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1:8b",
		Timeout: 60 * time.Second,
	}
}

// DefaultCommandServerConfig 返回默认命令服务配置
func DefaultCommandServerConfig() CommandServerConfig {
	return CommandServerConfig{
		BaseURL:    "http://localhost:8001",
		APIVersion: "v1",
		Timeout:    15 * time.Second,
	}
}

// DefaultWorkflowConfig 返回默认工作流配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxIterations: 20,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}
