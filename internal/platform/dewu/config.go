package dewu

import (
	"bytes"
	_ "embed"
	"fmt"

	"Multipost/internal/config"
	"Multipost/internal/engine"
	"Multipost/internal/platform/browser"
	"Multipost/internal/utils"
)

const platformName = "dewu"

//go:embed profile.yaml
var defaultProfileYAML []byte

// DefaultProfile 内置的得物创作者中心页面配置，每次返回新副本
func DefaultProfile() (*engine.Profile, error) {
	p, err := engine.DecodeProfile(bytes.NewReader(defaultProfileYAML))
	if err != nil {
		return nil, fmt.Errorf("内置得物配置无效: %w", err)
	}
	return p, nil
}

// LoadProfile path 为空时使用内置配置
func LoadProfile(path string) (*engine.Profile, error) {
	if path == "" {
		return DefaultProfile()
	}
	return engine.LoadProfile(path)
}

// cookieConfig 由 profile 的登录配置得到 Cookie 检测配置
func cookieConfig(p *engine.Profile) browser.CookieConfig {
	return browser.CookieConfig{
		Domain:          p.Login.CookieDomain,
		RequiredCookies: p.Login.RequiredCookies,
		SessionCookies:  p.Login.SessionCookies,
	}
}

// debugLog 调试日志输出，仅在调试模式下显示
func debugLog(format string, args ...interface{}) {
	if config.Config != nil && config.Config.DebugMode {
		utils.InfoWithPlatform(platformName, fmt.Sprintf("[调试] "+format, args...))
	}
}
