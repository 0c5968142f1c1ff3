package browser

import "github.com/playwright-community/playwright-go"

// stealthScript 隐藏常见的自动化特征
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['zh-CN', 'zh', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
if (originalQuery) {
  window.navigator.permissions.query = (parameters) =>
    parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : originalQuery(parameters);
}
`

// InjectStealthScript 在上下文的每个页面加载前注入反检测脚本
func InjectStealthScript(bc playwright.BrowserContext) error {
	return bc.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)})
}
