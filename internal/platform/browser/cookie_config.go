package browser

import "strings"

// CookieConfig 登录态检测配置
type CookieConfig struct {
	Domain          string   // Cookie 所属域名，子域名同样匹配
	RequiredCookies []string // 必需 Cookie，全部存在
	SessionCookies  []string // 会话 Cookie，至少存在一个
	ExtendedCookies []string // 扩展 Cookie，只记录不要求
}

// AllCookies 配置中出现的全部 Cookie 名称
func (c CookieConfig) AllCookies() []string {
	all := make([]string, 0, len(c.RequiredCookies)+len(c.SessionCookies)+len(c.ExtendedCookies))
	all = append(all, c.RequiredCookies...)
	all = append(all, c.SessionCookies...)
	return append(all, c.ExtendedCookies...)
}

// matchDomain cookieDomain 是否属于 domain（忽略前导点）
func matchDomain(cookieDomain, domain string) bool {
	if domain == "" {
		return true
	}
	cd := strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	d := strings.ToLower(strings.TrimPrefix(domain, "."))
	return cd == d || strings.HasSuffix(cd, "."+d)
}
