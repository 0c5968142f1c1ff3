package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Multipost/internal/utils"
	"Multipost/internal/utils/wait"

	"github.com/playwright-community/playwright-go"
)

// cookieSource 可读取 Cookie 的浏览器上下文
type cookieSource interface {
	Cookies(urls ...string) ([]playwright.Cookie, error)
}

// CookieChecker Cookie 检测器
type CookieChecker struct {
	checkInterval time.Duration
	timeout       time.Duration
	clock         wait.Clock
}

// NewCookieChecker 每 2 秒检测一次，5 分钟超时
func NewCookieChecker() *CookieChecker {
	return NewCookieCheckerWithTimeout(5 * time.Minute)
}

// NewCookieCheckerWithTimeout 创建带自定义超时的 Cookie 检测器
func NewCookieCheckerWithTimeout(timeout time.Duration) *CookieChecker {
	return &CookieChecker{
		checkInterval: 2 * time.Second,
		timeout:       timeout,
		clock:         wait.RealClock(),
	}
}

// WaitForLoginCookies 轮询直到必需 Cookie 全部出现
func (cc *CookieChecker) WaitForLoginCookies(ctx context.Context, page playwright.Page, config CookieConfig) error {
	if page == nil {
		return fmt.Errorf("页面已关闭")
	}
	return cc.waitFor(ctx, page.Context(), config)
}

func (cc *CookieChecker) waitFor(ctx context.Context, source cookieSource, config CookieConfig) error {
	utils.Info(fmt.Sprintf("[-] 开始检测登录Cookie，目标域名: %s，必需字段: %v", config.Domain, config.AllCookies()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalErr error
	checkCount := 0
	cond := func(ctx context.Context) bool {
		checkCount++
		ok, missing, err := cc.check(source, config)
		if err != nil {
			if isBrowserClosedError(err) {
				fatalErr = fmt.Errorf("浏览器已关闭，终止Cookie检测: %w", err)
				cancel()
				return false
			}
			utils.Warn(fmt.Sprintf("[-] 第 %d 次检测Cookie失败: %v", checkCount, err))
			return false
		}
		if !ok && checkCount%5 == 1 {
			utils.Info(fmt.Sprintf("[-] 等待登录，缺少Cookie: %v", missing))
		}
		return ok
	}

	deadline := cc.clock.Now().Add(cc.timeout)
	res, err := wait.Until(ctx, cc.clock, deadline, cc.checkInterval, cond)
	if fatalErr != nil {
		return fatalErr
	}
	if err != nil {
		return fmt.Errorf("context取消: %w", err)
	}
	if !res.Satisfied {
		return fmt.Errorf("登录Cookie检测超时（%v），未检测到必需Cookie", cc.timeout)
	}
	utils.Info("[-] 检测到所有必需Cookie")
	return nil
}

// ValidateLoginCookies 单次检测，返回是否有效以及缺失的 Cookie
func (cc *CookieChecker) ValidateLoginCookies(page playwright.Page, config CookieConfig) (bool, []string, error) {
	if page == nil {
		return false, nil, fmt.Errorf("页面已关闭")
	}
	return cc.check(page.Context(), config)
}

func (cc *CookieChecker) check(source cookieSource, config CookieConfig) (bool, []string, error) {
	cookies, err := source.Cookies()
	if err != nil {
		return false, nil, err
	}
	ok, missing := missingCookies(cookies, config)
	return ok, missing, nil
}

// missingCookies 按域名过滤后检查必需 Cookie 和会话 Cookie，名称不区分大小写，值不能为空
// 两个列表都为空时无法判断登录态，视为未登录
func missingCookies(cookies []playwright.Cookie, config CookieConfig) (bool, []string) {
	if len(config.RequiredCookies) == 0 && len(config.SessionCookies) == 0 {
		return false, nil
	}

	present := make(map[string]bool)
	for _, c := range cookies {
		if !matchDomain(c.Domain, config.Domain) || c.Value == "" {
			continue
		}
		present[strings.ToLower(c.Name)] = true
	}

	var missing []string
	for _, name := range config.RequiredCookies {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(config.SessionCookies) > 0 {
		found := false
		for _, name := range config.SessionCookies {
			if present[strings.ToLower(name)] {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, strings.Join(config.SessionCookies, "|"))
		}
	}
	return len(missing) == 0, missing
}

func isBrowserClosedError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"target closed", "browser has been closed", "context has been closed", "Target page, context or browser has been closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
