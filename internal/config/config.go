package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LogConfig 日志输出与切割配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	MaxSize    int    `mapstructure:"max_size"`    // 单个日志文件大小上限（MB）
	MaxBackups int    `mapstructure:"max_backups"` // 保留的历史文件数
	MaxAge     int    `mapstructure:"max_age"`     // 保留天数
	Compress   bool   `mapstructure:"compress"`
}

// ObjectStoreConfig s3:// 媒体引用使用的对象存储配置
type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type AppConfig struct {
	StoragePath  string            `mapstructure:"storage_path"`
	CookiePath   string            `mapstructure:"cookie_path"`
	LogPath      string            `mapstructure:"log_path"`
	ProfilePath  string            `mapstructure:"profile_path"` // 目标站点配置文件，为空时使用内置配置
	MediaAddr    string            `mapstructure:"media_addr"`   // 本地媒体服务监听地址
	FetchTimeout time.Duration     `mapstructure:"fetch_timeout"`
	DebugMode    bool              `mapstructure:"debug"`       // 调试模式开关
	Headless     bool              `mapstructure:"headless"`    // 浏览器无头模式开关（true=隐藏浏览器窗口）
	ProbeVideo   bool              `mapstructure:"probe_video"` // 使用 ffprobe 读取视频尺寸
	Log          LogConfig         `mapstructure:"log"`
	ObjectStore  ObjectStoreConfig `mapstructure:"object_store"`
}

var Config *AppConfig

// SetDefaults 写入默认值，storage 目录位于可执行文件旁
func SetDefaults(v *viper.Viper, baseDir string) {
	storageDir := filepath.Join(baseDir, DefaultStorageDir)

	v.SetDefault("storage_path", storageDir)
	v.SetDefault("cookie_path", filepath.Join(storageDir, DefaultCookieDir))
	v.SetDefault("log_path", filepath.Join(storageDir, DefaultLogDir))
	v.SetDefault("profile_path", "")
	v.SetDefault("media_addr", DefaultMediaAddr)
	v.SetDefault("fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("debug", false)
	v.SetDefault("headless", false)
	v.SetDefault("probe_video", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 14)
	v.SetDefault("log.compress", false)

	v.SetDefault("object_store.endpoint", "")
	v.SetDefault("object_store.access_key", "")
	v.SetDefault("object_store.secret_key", "")
	v.SetDefault("object_store.region", "")
	v.SetDefault("object_store.use_ssl", true)
}

// NewViper 创建带默认值和环境变量绑定的 viper 实例
// 环境变量示例：MULTIPOST_HEADLESS=true、MULTIPOST_LOG_LEVEL=debug
func NewViper(baseDir string) *viper.Viper {
	v := viper.New()
	SetDefaults(v, baseDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 读取配置文件（可为空）和环境变量，填充全局 Config 并创建目录
func Load(path string) error {
	baseDir, err := executableDir()
	if err != nil {
		return err
	}

	v := NewViper(baseDir)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s failed: %w", path, err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	Config = cfg
	return nil
}

// FromViper 从 viper 实例解析配置
func FromViper(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch_timeout must be positive, got %s", cfg.FetchTimeout)
	}
	return &cfg, nil
}

// EnsureDirs 创建存储相关目录
func (c *AppConfig) EnsureDirs() error {
	dirs := []string{
		c.StoragePath,
		c.CookiePath,
		c.LogPath,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s failed: %w", dir, err)
		}
	}
	return nil
}

func GetCookiePath(platform string) string {
	return filepath.Join(Config.CookiePath, fmt.Sprintf("%s.json", platform))
}

func executableDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exePath), nil
}
