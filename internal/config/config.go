package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/huuly01092003/Smart-bi/internal/logging"
	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/recalc"
)

// AppConfig 应用配置
type AppConfig struct {
	Server   ServerConfig   `toml:"server"`
	Data     DataConfig     `toml:"data"`
	Session  SessionConfig  `toml:"session"`
	Upload   UploadConfig   `toml:"upload"`
	Business BusinessConfig `toml:"business"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port                  int    `toml:"port" validate:"min=1,max=65535"`
	DevMode               bool   `toml:"dev_mode"`
	FrontendURL           string `toml:"frontend_url" validate:"omitempty,url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" validate:"min=1"`
	UploadTimeoutSeconds  int    `toml:"upload_timeout_seconds" validate:"min=1"`
	ShutdownSeconds       int    `toml:"shutdown_seconds" validate:"min=1"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir" validate:"required"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	TTLMinutes      int `toml:"ttl_minutes" validate:"min=1"`
	SweepSeconds    int `toml:"sweep_seconds" validate:"min=1"`
	MaxCachedViews  int `toml:"max_cached_views" validate:"min=1"`
	DownloadTTLSecs int `toml:"download_ttl_seconds" validate:"min=1"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	MaxSizeMB      int     `toml:"max_size_mb" validate:"min=1"`
	RatePerMinute  float64 `toml:"rate_per_minute" validate:"gt=0"`
	Burst          int     `toml:"burst" validate:"min=1"`
	ImportLogLimit int     `toml:"import_log_limit" validate:"min=1"`
}

// BusinessConfig 业务配置
type BusinessConfig struct {
	Classes  recalc.Thresholds  `toml:"classes"`
	Master   model.MasterParams `toml:"master"`
	MapLimit int                `toml:"map_limit" validate:"min=1"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `toml:"format" validate:"omitempty,oneof=json console"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	FileFound     bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                  20261,
			FrontendURL:           "http://localhost:5173",
			RequestTimeoutSeconds: 15,
			UploadTimeoutSeconds:  60,
			ShutdownSeconds:       10,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Session: SessionConfig{
			TTLMinutes:      120,
			SweepSeconds:    60,
			MaxCachedViews:  256,
			DownloadTTLSecs: 600,
		},
		Upload: UploadConfig{
			MaxSizeMB:      50,
			RatePerMinute:  30,
			Burst:          5,
			ImportLogLimit: 50,
		},
		Business: BusinessConfig{
			Classes:  recalc.DefaultThresholds(),
			Master:   model.DefaultMasterParams(),
			MapLimit: 5000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Logging 日志初始化参数
func (c *AppConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	if c.Server.DevMode && c.Log.Format == "" {
		cfg.Format = "console"
	}
	return cfg
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %s %s", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}
	serverMap, ok := raw["server"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo 从可执行文件同目录的 config.toml 加载配置并返回元信息
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	return LoadFile(filepath.Join(exeDir, "config.toml"))
}

// LoadFile 从指定路径加载配置；文件不存在时使用默认配置。环境变量覆盖文件内容
func LoadFile(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Path: path}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.FileFound = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, info, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, info, err
	}
	if _, ok := os.LookupEnv("SMARTBI_PORT"); ok {
		info.PortSpecified = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, info, err
	}
	return cfg, info, nil
}

// applyEnv 环境变量覆盖（SMARTBI_*）
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"SMARTBI_PORT":                    &cfg.Server.Port,
		"SMARTBI_REQUEST_TIMEOUT_SECONDS": &cfg.Server.RequestTimeoutSeconds,
		"SMARTBI_UPLOAD_TIMEOUT_SECONDS":  &cfg.Server.UploadTimeoutSeconds,
		"SMARTBI_SESSION_TTL_MINUTES":     &cfg.Session.TTLMinutes,
		"SMARTBI_UPLOAD_MAX_SIZE_MB":      &cfg.Upload.MaxSizeMB,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("SMARTBI_DEV_MODE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid SMARTBI_DEV_MODE: %w", err)
		}
		cfg.Server.DevMode = b
	}
	if v, ok := lookup("SMARTBI_DATA_DIR"); ok && v != "" {
		cfg.Data.DataDir = v
	}
	if v, ok := lookup("SMARTBI_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup("SMARTBI_LOG_FORMAT"); ok && v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(cfg *AppConfig) error {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(exeDir, "config.toml"), data, 0644)
}

// EnsureDataDir 确保数据目录存在；相对路径基于可执行文件目录
func EnsureDataDir(cfg *AppConfig) (string, error) {
	dataDir := cfg.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "exports"), 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// DBPath 审计库路径
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "smartbi.db")
}
