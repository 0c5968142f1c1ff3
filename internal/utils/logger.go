package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"Multipost/internal/config"
	"Multipost/internal/types"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogServiceInterface 日志服务接口（避免循环依赖）
type LogServiceInterface interface {
	Add(log types.SimpleLog)
}

type Logger struct {
	zl         *zap.Logger
	level      zap.AtomicLevel
	logService LogServiceInterface
	mutex      sync.Mutex
}

var (
	defaultLogger *Logger
	loggerMutex   sync.Mutex
)

// NewLogger 创建日志器：控制台输出 + logDir 下按大小切割的 JSON 文件
// logDir 为空时只输出到控制台
func NewLogger(cfg config.LogConfig, logDir string, debug bool, console zapcore.WriteSyncer) *Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}
	if debug {
		level.SetLevel(zap.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, level),
	}
	if logDir != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, "multipost.log"),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, level))
	}

	return &Logger{
		zl:    zap.New(zapcore.NewTee(cores...)),
		level: level,
	}
}

// InitLogger 按全局配置初始化默认日志器
func InitLogger() error {
	if config.Config == nil {
		return fmt.Errorf("config not loaded")
	}
	l := NewLogger(config.Config.Log, config.Config.LogPath, config.Config.DebugMode, zapcore.Lock(os.Stderr))

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if defaultLogger != nil {
		l.logService = defaultLogger.logService
		_ = defaultLogger.zl.Sync()
	}
	defaultLogger = l
	return nil
}

// GetLogger 返回默认日志器，未初始化时退回到仅控制台输出
func GetLogger() *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(config.LogConfig{Level: "info"}, "", false, zapcore.Lock(os.Stderr))
	}
	return defaultLogger
}

// SetDefaultLogger 替换默认日志器，返回旧值
func SetDefaultLogger(l *Logger) *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	prev := defaultLogger
	defaultLogger = l
	return prev
}

// SetLogService 设置日志服务，用于诊断日志收集
func SetLogService(service LogServiceInterface) {
	GetLogger().SetLogService(service)
}

func (l *Logger) SetLogService(service LogServiceInterface) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.logService = service
}

// Sync 刷新缓冲
func Sync() {
	_ = GetLogger().zl.Sync()
}

func zapLevel(level types.LogLevel) zapcore.Level {
	switch level {
	case types.LogLevelDebug:
		return zap.DebugLevel
	case types.LogLevelWarn:
		return zap.WarnLevel
	case types.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// log 内部日志记录方法
func (l *Logger) log(level types.LogLevel, platform, msg string) {
	zl := zapLevel(level)
	if !l.level.Enabled(zl) {
		return
	}

	fields := make([]zap.Field, 0, 2)
	if platform != "" {
		fields = append(fields, zap.String("platform", platform))
	}
	if level == types.LogLevelSuccess {
		fields = append(fields, zap.Bool("success", true))
	}
	if ce := l.zl.Check(zl, msg); ce != nil {
		ce.Write(fields...)
	}

	l.mutex.Lock()
	service := l.logService
	l.mutex.Unlock()

	if service != nil {
		now := time.Now()
		service.Add(types.SimpleLog{
			Date:     now.Format("2006/1/2"),
			Time:     now.Format("15:04:05"),
			Message:  msg,
			Platform: platform,
			Level:    level,
		})
	}
}

// ========== 基础日志函数（不带平台）==========

func (l *Logger) Info(msg string) {
	l.log(types.LogLevelInfo, "", msg)
}

func (l *Logger) Error(msg string) {
	l.log(types.LogLevelError, "", msg)
}

func (l *Logger) Warn(msg string) {
	l.log(types.LogLevelWarn, "", msg)
}

func (l *Logger) Debug(msg string) {
	l.log(types.LogLevelDebug, "", msg)
}

func (l *Logger) Success(msg string) {
	l.log(types.LogLevelSuccess, "", msg)
}

// ========== 带平台的日志函数 ==========

func (l *Logger) InfoWithPlatform(platform, msg string) {
	l.log(types.LogLevelInfo, platform, msg)
}

func (l *Logger) ErrorWithPlatform(platform, msg string) {
	l.log(types.LogLevelError, platform, msg)
}

func (l *Logger) WarnWithPlatform(platform, msg string) {
	l.log(types.LogLevelWarn, platform, msg)
}

func (l *Logger) DebugWithPlatform(platform, msg string) {
	l.log(types.LogLevelDebug, platform, msg)
}

func (l *Logger) SuccessWithPlatform(platform, msg string) {
	l.log(types.LogLevelSuccess, platform, msg)
}

// ========== 全局便捷函数 ==========

func Info(msg string)    { GetLogger().Info(msg) }
func Error(msg string)   { GetLogger().Error(msg) }
func Warn(msg string)    { GetLogger().Warn(msg) }
func Debug(msg string)   { GetLogger().Debug(msg) }
func Success(msg string) { GetLogger().Success(msg) }

func InfoWithPlatform(platform, msg string)    { GetLogger().InfoWithPlatform(platform, msg) }
func ErrorWithPlatform(platform, msg string)   { GetLogger().ErrorWithPlatform(platform, msg) }
func WarnWithPlatform(platform, msg string)    { GetLogger().WarnWithPlatform(platform, msg) }
func DebugWithPlatform(platform, msg string)   { GetLogger().DebugWithPlatform(platform, msg) }
func SuccessWithPlatform(platform, msg string) { GetLogger().SuccessWithPlatform(platform, msg) }

// Screenshot 截图并保存到日志目录
func Screenshot(page playwright.Page, name string) error {
	dir := os.TempDir()
	if config.Config != nil && config.Config.LogPath != "" {
		dir = config.Config.LogPath
	}
	screenshotPath := filepath.Join(dir, fmt.Sprintf("screenshot_%s_%s.png", time.Now().Format("20060102_150405"), name))
	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(screenshotPath),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		Error(fmt.Sprintf("截图失败: %v", err))
		return err
	}
	Info(fmt.Sprintf("截图已保存: %s", screenshotPath))
	return nil
}
