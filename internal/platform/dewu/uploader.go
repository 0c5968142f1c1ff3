package dewu

import (
	"context"
	"errors"
	"fmt"
	"os"

	"Multipost/internal/config"
	"Multipost/internal/engine"
	"Multipost/internal/platform/browser"
	"Multipost/internal/types"
	"Multipost/internal/utils"
)

// ContextPool 提供浏览器上下文，*browser.Pool 实现它
type ContextPool interface {
	GetContext(ctx context.Context, platform, cookiePath string, options *browser.ContextOptions) (*browser.PooledContext, error)
}

// Uploader 得物上传器：打开创作者中心页面，交给发布引擎执行
type Uploader struct {
	cookiePath string
	profile    *engine.Profile
	engine     *engine.Engine
	pool       ContextPool
}

// EngineOptions 按应用配置生成引擎选项
func EngineOptions(cfg *config.AppConfig) ([]engine.Option, error) {
	if cfg == nil {
		return nil, nil
	}
	fetcher, err := engine.NewMediaFetcher(
		engine.WithTimeout(cfg.FetchTimeout),
		engine.WithObjectStore(cfg.ObjectStore),
	)
	if err != nil {
		return nil, fmt.Errorf("创建媒体下载器失败: %w", err)
	}
	opts := []engine.Option{engine.WithFetcher(fetcher)}
	if cfg.ProbeVideo {
		if utils.CheckFFprobe() {
			opts = append(opts, engine.WithProber(utils.ProbeVideo))
		} else {
			utils.WarnWithPlatform(platformName, "未找到 ffprobe，使用默认视频尺寸")
		}
	}
	return opts, nil
}

// NewUploader 创建上传器，profile 为 nil 时使用内置配置
func NewUploader(pool ContextPool, cookiePath string, profile *engine.Profile, opts ...engine.Option) (*Uploader, error) {
	if cookiePath == "" {
		return nil, errors.New("cookie路径为空")
	}
	if profile == nil {
		p, err := DefaultProfile()
		if err != nil {
			return nil, err
		}
		profile = p
	}
	e, err := engine.New(profile, opts...)
	if err != nil {
		return nil, err
	}
	debugLog("创建上传器 - cookiePath: '%s'", cookiePath)
	return &Uploader{
		cookiePath: cookiePath,
		profile:    profile,
		engine:     e,
		pool:       pool,
	}, nil
}

// Platform 返回平台名称
func (u *Uploader) Platform() string {
	return u.profile.Platform
}

// Engine 返回内部使用的发布引擎
func (u *Uploader) Engine() *engine.Engine {
	return u.engine
}

// ValidateCookie 打开页面检测登录 Cookie
func (u *Uploader) ValidateCookie(ctx context.Context) (bool, error) {
	utils.InfoWithPlatform(u.Platform(), "验证Cookie")
	if _, err := os.Stat(u.cookiePath); os.IsNotExist(err) {
		utils.WarnWithPlatform(u.Platform(), "Cookie文件不存在")
		return false, nil
	}

	browserCtx, err := u.pool.GetContext(ctx, u.Platform(), u.cookiePath, nil)
	if err != nil {
		return false, fmt.Errorf("获取浏览器失败: %w", err)
	}
	defer browserCtx.Release()

	if err := browserCtx.Goto(u.profile.URL); err != nil {
		return false, err
	}
	valid, missing, err := browserCtx.ValidateLoginCookies(cookieConfig(u.profile))
	if err != nil {
		return false, fmt.Errorf("验证Cookie失败: %w", err)
	}
	if valid {
		utils.InfoWithPlatform(u.Platform(), "Cookie验证通过")
	} else {
		utils.WarnWithPlatform(u.Platform(), fmt.Sprintf("Cookie验证失败，缺少: %v", missing))
	}
	return valid, nil
}

// Login 打开登录页，等待用户完成登录后保存 Cookie
func (u *Uploader) Login(ctx context.Context) error {
	browserCtx, err := u.pool.GetContext(ctx, u.Platform(), u.cookiePath, nil)
	if err != nil {
		return fmt.Errorf("获取浏览器失败: %w", err)
	}
	defer browserCtx.Release()

	url := u.profile.Login.URL
	if url == "" {
		url = u.profile.URL
	}
	utils.InfoWithPlatform(u.Platform(), "正在打开登录页面...")
	if err := browserCtx.Goto(url); err != nil {
		return err
	}

	utils.InfoWithPlatform(u.Platform(), "请在浏览器窗口中完成登录，登录成功后会自动保存")
	if err := browserCtx.WaitForLoginCookies(ctx, cookieConfig(u.profile)); err != nil {
		return fmt.Errorf("等待登录Cookie失败: %w", err)
	}
	if err := browserCtx.SaveCookies(); err != nil {
		return fmt.Errorf("保存Cookie失败: %w", err)
	}
	utils.SuccessWithPlatform(u.Platform(), "登录成功")
	return nil
}

// Upload 实现 types.Uploader
func (u *Uploader) Upload(ctx context.Context, req *types.PublishRequest) error {
	_, err := u.Publish(ctx, req)
	return err
}

// Publish 打开发布页执行一次发布并返回报告
// 已有发布在运行时直接返回 Skipped 报告，不获取浏览器上下文
func (u *Uploader) Publish(ctx context.Context, req *types.PublishRequest) (*engine.Report, error) {
	if skipped, ok := u.engine.Acquire(); !ok {
		return skipped, nil
	}
	held := true
	defer func() {
		if held {
			u.engine.Release()
		}
	}()

	browserCtx, err := u.pool.GetContext(ctx, u.Platform(), u.cookiePath, nil)
	if err != nil {
		return nil, fmt.Errorf("获取浏览器失败: %w", err)
	}
	defer browserCtx.Release()

	utils.InfoWithPlatform(u.Platform(), "正在打开发布页面...")
	if err := browserCtx.Goto(u.profile.URL); err != nil {
		return nil, err
	}

	// 登录检测只提示，不阻止发布
	if valid, missing, err := browserCtx.ValidateLoginCookies(cookieConfig(u.profile)); err != nil {
		utils.WarnWithPlatform(u.Platform(), fmt.Sprintf("检测登录状态失败: %v", err))
	} else if !valid {
		utils.WarnWithPlatform(u.Platform(), fmt.Sprintf("可能未登录，缺少Cookie: %v", missing))
	}

	page, err := browserCtx.GetPage()
	if err != nil {
		return nil, fmt.Errorf("获取页面失败: %w", err)
	}

	held = false
	report, err := u.engine.RunAcquired(ctx, browser.NewPageDocument(page), req)
	if err != nil {
		utils.Screenshot(page, platformName+"_failed")
		return report, fmt.Errorf("发布失败: %w", err)
	}
	return report, nil
}
