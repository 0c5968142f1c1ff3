package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"Multipost/internal/utils"

	"github.com/playwright-community/playwright-go"
)

// Pool 浏览器池：一个浏览器实例，按 Cookie 文件复用上下文
type Pool struct {
	headless    bool
	maxContexts int

	mutex    sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	contexts []*PooledContext
}

// PooledContext 封装的浏览器上下文
type PooledContext struct {
	context    playwright.BrowserContext
	page       playwright.Page
	cookiePath string
	platform   string
	inUse      bool
	pool       *Pool
}

// ContextOptions 上下文选项
type ContextOptions struct {
	UserAgent    string
	Viewport     *playwright.Size
	Locale       string
	TimezoneId   string
	ExtraHeaders map[string]string
	// EnableAntiDetect 随机指纹并注入反检测脚本
	EnableAntiDetect bool
}

// DefaultContextOptions 默认启用反检测
func DefaultContextOptions() *ContextOptions {
	return &ContextOptions{EnableAntiDetect: true}
}

// NewPool 创建浏览器池，浏览器在第一次获取上下文时启动
func NewPool(headless bool, maxContexts int) *Pool {
	if maxContexts <= 0 {
		maxContexts = 1
	}
	return &Pool{headless: headless, maxContexts: maxContexts}
}

// GetContext 获取 cookiePath 对应的上下文，空闲的优先复用
func (p *Pool) GetContext(ctx context.Context, platform, cookiePath string, options *ContextOptions) (*PooledContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, c := range p.contexts {
		if c.cookiePath == cookiePath && !c.inUse {
			c.inUse = true
			return c, nil
		}
	}
	if len(p.contexts) >= p.maxContexts {
		return nil, fmt.Errorf("max contexts reached (%d)", p.maxContexts)
	}

	if options == nil {
		options = DefaultContextOptions()
	}
	if options.EnableAntiDetect {
		options = randomFingerprint(options)
	}
	if err := p.ensureBrowser(); err != nil {
		return nil, err
	}

	c, err := p.createContext(platform, cookiePath, options)
	if err != nil {
		return nil, err
	}
	p.contexts = append(p.contexts, c)
	return c, nil
}

// randomFingerprint 随机 Chrome 版本与视口
func randomFingerprint(base *ContextOptions) *ContextOptions {
	chromeVersions := []string{"124", "125", "126", "127", "128"}
	version := chromeVersions[rand.Intn(len(chromeVersions))]

	return &ContextOptions{
		UserAgent: fmt.Sprintf(
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s.0.0.0 Safari/537.36",
			version,
		),
		Viewport: &playwright.Size{
			Width:  1920 + rand.Intn(100) - 50,
			Height: 1080 + rand.Intn(100) - 50,
		},
		Locale:     "zh-CN",
		TimezoneId: "Asia/Shanghai",
		ExtraHeaders: map[string]string{
			"Accept-Language":    "zh-CN,zh;q=0.9,en;q=0.8",
			"Sec-Ch-Ua":          fmt.Sprintf(`"Not_A Brand";v="8", "Chromium";v="%s", "Google Chrome";v="%s"`, version, version),
			"Sec-Ch-Ua-Mobile":   "?0",
			"Sec-Ch-Ua-Platform": `"Windows"`,
		},
		EnableAntiDetect: base.EnableAntiDetect,
	}
}

// ensureBrowser 调用方需持有锁
func (p *Pool) ensureBrowser() error {
	if p.browser != nil && p.browser.IsConnected() {
		return nil
	}
	if p.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return fmt.Errorf("start playwright failed: %w", err)
		}
		p.pw = pw
	}

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(p.headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--window-size=1920,1080",
			"--disable-infobars",
			"--disable-extensions",
			"--disable-popup-blocking",
		},
	}
	if chromePath := findLocalChrome(); chromePath != "" {
		launchOptions.ExecutablePath = playwright.String(chromePath)
		utils.Info("[-] 浏览器池使用本地 Chrome: " + chromePath)
	}

	browser, err := p.pw.Chromium.Launch(launchOptions)
	if err != nil {
		return fmt.Errorf("launch browser failed: %w", err)
	}
	p.browser = browser
	return nil
}

// createContext 调用方需持有锁
func (p *Pool) createContext(platform, cookiePath string, options *ContextOptions) (*PooledContext, error) {
	contextOptions := playwright.BrowserNewContextOptions{
		ColorScheme:      playwright.ColorSchemeLight,
		ExtraHttpHeaders: options.ExtraHeaders,
	}
	if options.Locale != "" {
		contextOptions.Locale = playwright.String(options.Locale)
	}
	if options.TimezoneId != "" {
		contextOptions.TimezoneId = playwright.String(options.TimezoneId)
	}
	if options.UserAgent != "" {
		contextOptions.UserAgent = playwright.String(options.UserAgent)
	}
	if options.Viewport != nil {
		contextOptions.Viewport = options.Viewport
	}
	if cookiePath != "" {
		if _, err := os.Stat(cookiePath); err == nil {
			contextOptions.StorageStatePath = playwright.String(cookiePath)
		}
	}

	bc, err := p.browser.NewContext(contextOptions)
	if err != nil {
		return nil, fmt.Errorf("create context failed: %w", err)
	}
	if options.EnableAntiDetect {
		if err := InjectStealthScript(bc); err != nil {
			_ = bc.Close()
			return nil, fmt.Errorf("inject stealth script failed: %w", err)
		}
	}

	return &PooledContext{
		context:    bc,
		cookiePath: cookiePath,
		platform:   platform,
		inUse:      true,
		pool:       p,
	}, nil
}

// Close 关闭所有上下文、浏览器并停止 playwright
func (p *Pool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, c := range p.contexts {
		_ = c.closeLocked()
	}
	p.contexts = nil

	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			utils.Warn(fmt.Sprintf("[-] 关闭浏览器失败: %v", err))
		}
		p.browser = nil
	}
	if p.pw != nil {
		if err := p.pw.Stop(); err != nil {
			return fmt.Errorf("stop playwright failed: %w", err)
		}
		p.pw = nil
	}
	return nil
}

// Release 保存 Cookie 并关闭页面，上下文留待复用
// 页面已被用户关闭时整个上下文被丢弃
func (c *PooledContext) Release() error {
	if c.IsPageClosed() {
		utils.InfoWithPlatform(c.platform, "浏览器被用户关闭，执行清理...")
		if err := c.SaveCookies(); err != nil {
			utils.WarnWithPlatform(c.platform, fmt.Sprintf("保存Cookie失败（页面已关闭）: %v", err))
		}
		c.pool.mutex.Lock()
		defer c.pool.mutex.Unlock()
		_ = c.closeLocked()
		c.pool.remove(c)
		return fmt.Errorf("browser was closed by user")
	}

	if err := c.SaveCookies(); err != nil {
		utils.WarnWithPlatform(c.platform, fmt.Sprintf("保存Cookie失败: %v", err))
	} else {
		utils.InfoWithPlatform(c.platform, "Cookie已保存")
	}
	if err := c.ClosePage(); err != nil {
		utils.WarnWithPlatform(c.platform, fmt.Sprintf("关闭页面失败: %v", err))
	}

	c.pool.mutex.Lock()
	c.inUse = false
	c.pool.mutex.Unlock()
	return nil
}

// remove 调用方需持有锁
func (p *Pool) remove(target *PooledContext) {
	for i, c := range p.contexts {
		if c == target {
			p.contexts = append(p.contexts[:i], p.contexts[i+1:]...)
			return
		}
	}
}

func (c *PooledContext) closeLocked() error {
	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	return c.context.Close()
}

// SaveCookies 保存 storage state 到 cookiePath
func (c *PooledContext) SaveCookies() error {
	if c.cookiePath == "" {
		return fmt.Errorf("cookie path is empty")
	}
	storage, err := c.context.StorageState()
	if err != nil {
		return err
	}
	data, err := json.Marshal(storage)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.cookiePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cookie directory failed: %w", err)
		}
	}
	return os.WriteFile(c.cookiePath, data, 0644)
}

// GetPage 获取或创建页面
func (c *PooledContext) GetPage() (playwright.Page, error) {
	if c.page != nil {
		return c.page, nil
	}
	page, err := c.context.NewPage()
	if err != nil {
		return nil, err
	}
	page.SetDefaultTimeout(30000)
	page.SetDefaultNavigationTimeout(30000)
	page.On("close", func() {
		utils.InfoWithPlatform(c.platform, "浏览器页面被关闭")
		c.page = nil
	})
	c.page = page
	return page, nil
}

// Goto 打开页面并检查是否出现验证码
func (c *PooledContext) Goto(url string) error {
	page, err := c.GetPage()
	if err != nil {
		return err
	}
	if _, err := page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded}); err != nil {
		return fmt.Errorf("goto %s failed: %w", url, err)
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: playwright.LoadStateNetworkidle}); err != nil {
		utils.WarnWithPlatform(c.platform, fmt.Sprintf("等待页面加载失败: %v", err))
	}
	if detected, kind := c.DetectCaptcha(); detected {
		return fmt.Errorf("检测到%s，需要人工处理", kind)
	}
	return nil
}

// ClosePage 关闭当前页面
func (c *PooledContext) ClosePage() error {
	if c.page == nil {
		return nil
	}
	err := c.page.Close()
	c.page = nil
	return err
}

// IsPageClosed 连续三次探测失败才判定页面已关闭
func (c *PooledContext) IsPageClosed() bool {
	if c.page == nil {
		return true
	}
	for i := 0; i < 3; i++ {
		if _, err := c.page.Evaluate(`document.title`); err == nil {
			return false
		}
		if i < 2 {
			time.Sleep(500 * time.Millisecond)
		}
	}
	return true
}

var captchaSelectors = []struct {
	selector string
	kind     string
}{
	{".captcha", "验证码"},
	{"[class*='captcha']", "验证码"},
	{"[class*='slider-verify']", "滑块验证"},
	{".geetest", "极验验证"},
	{"[class*='geetest']", "极验验证"},
	{"iframe[src*='captcha']", "验证码iframe"},
	{"text=请完成验证", "文字验证"},
	{"text=拖动滑块", "滑块验证"},
}

// DetectCaptcha 检测是否出现可见的验证码
func (c *PooledContext) DetectCaptcha() (bool, string) {
	if c.page == nil {
		return false, ""
	}
	for _, item := range captchaSelectors {
		loc := c.page.Locator(item.selector).First()
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if visible, _ := loc.IsVisible(); visible {
			utils.WarnWithPlatform(c.platform, "检测到"+item.kind)
			return true, item.kind
		}
	}
	return false, ""
}

// WaitForLoginCookies 等待用户在页面上完成登录
func (c *PooledContext) WaitForLoginCookies(ctx context.Context, config CookieConfig) error {
	if c.page == nil {
		return fmt.Errorf("page not created")
	}
	return NewCookieChecker().WaitForLoginCookies(ctx, c.page, config)
}

// ValidateLoginCookies 单次检测登录 Cookie，返回缺失的 Cookie
func (c *PooledContext) ValidateLoginCookies(config CookieConfig) (bool, []string, error) {
	if c.page == nil {
		return false, nil, fmt.Errorf("page not created")
	}
	return NewCookieChecker().ValidateLoginCookies(c.page, config)
}

// findLocalChrome 查找本地 Chrome，找不到时使用 playwright 自带的 Chromium
func findLocalChrome() string {
	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			os.Getenv("LOCALAPPDATA") + `\Google\Chrome\Application\chrome.exe`,
		}
	case "darwin":
		paths = []string{"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"}
	default:
		paths = []string{"/usr/bin/google-chrome", "/usr/bin/google-chrome-stable"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
