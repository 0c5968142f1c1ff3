package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"Multipost/internal/utils/wait"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	rounds [][]playwright.Cookie
	errs   []error
	calls  int
}

func (f *fakeSource) Cookies(urls ...string) ([]playwright.Cookie, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.rounds) {
		i = len(f.rounds) - 1
	}
	return f.rounds[i], nil
}

func cookie(name, value, domain string) playwright.Cookie {
	return playwright.Cookie{Name: name, Value: value, Domain: domain}
}

func testChecker(timeout time.Duration) (*CookieChecker, *wait.FakeClock) {
	clock := wait.NewFakeClock(time.Unix(0, 0))
	cc := NewCookieCheckerWithTimeout(timeout)
	cc.clock = clock
	return cc, clock
}

func TestMatchDomain(t *testing.T) {
	assert.True(t, matchDomain(".dewu.com", "dewu.com"))
	assert.True(t, matchDomain("creator.dewu.com", "dewu.com"))
	assert.True(t, matchDomain("DEWU.com", ".dewu.com"))
	assert.True(t, matchDomain("anything.org", ""))
	assert.False(t, matchDomain("notdewu.com", "dewu.com"))
	assert.False(t, matchDomain("dewu.com.evil.net", "dewu.com"))
}

func TestMissingCookies(t *testing.T) {
	cfg := CookieConfig{Domain: "dewu.com", RequiredCookies: []string{"sessionid", "uid"}}

	ok, missing := missingCookies([]playwright.Cookie{
		cookie("SessionID", "x", ".dewu.com"),
		cookie("uid", "", ".dewu.com"),
		cookie("uid", "1", "other.com"),
	}, cfg)
	assert.False(t, ok)
	assert.Equal(t, []string{"uid"}, missing)

	ok, missing = missingCookies([]playwright.Cookie{
		cookie("sessionid", "x", ".dewu.com"),
		cookie("uid", "1", "creator.dewu.com"),
	}, cfg)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestMissingCookies_EmptyConfigNeverLoggedIn(t *testing.T) {
	cfg := CookieConfig{Domain: "dewu.com"}

	ok, _ := missingCookies(nil, cfg)
	assert.False(t, ok)

	ok, _ = missingCookies([]playwright.Cookie{cookie("a", "1", ".dewu.com")}, cfg)
	assert.False(t, ok)
}

func TestMissingCookies_SessionCookies(t *testing.T) {
	cfg := CookieConfig{Domain: "dewu.com", SessionCookies: []string{"duToken", "accessToken"}}

	// 首次访问就会种下的匿名追踪 Cookie
	anonymous := []playwright.Cookie{
		cookie("_ga", "GA1.2.1", ".dewu.com"),
		cookie("Hm_lvt_abc", "1700000000", ".dewu.com"),
		cookie("duToken", "x", "other.com"),
	}
	ok, missing := missingCookies(anonymous, cfg)
	assert.False(t, ok)
	assert.Equal(t, []string{"duToken|accessToken"}, missing)

	ok, missing = missingCookies(append(anonymous, cookie("accesstoken", "t", "creator.dewu.com")), cfg)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestCookieConfig_AllCookies(t *testing.T) {
	cfg := CookieConfig{RequiredCookies: []string{"a"}, SessionCookies: []string{"s"}, ExtendedCookies: []string{"b", "c"}}
	assert.Equal(t, []string{"a", "s", "b", "c"}, cfg.AllCookies())
}

func TestWaitFor_SucceedsWhenCookiesAppear(t *testing.T) {
	cc, clock := testChecker(time.Minute)
	src := &fakeSource{rounds: [][]playwright.Cookie{
		nil,
		nil,
		{cookie("sessionid", "x", ".dewu.com")},
	}}

	err := cc.waitFor(context.Background(), src, CookieConfig{Domain: "dewu.com", RequiredCookies: []string{"sessionid"}})
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestWaitFor_Timeout(t *testing.T) {
	cc, _ := testChecker(5 * time.Second)
	src := &fakeSource{rounds: [][]playwright.Cookie{nil}}

	err := cc.waitFor(context.Background(), src, CookieConfig{Domain: "dewu.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "超时")
}

func TestWaitFor_TransientErrorKeepsPolling(t *testing.T) {
	cc, _ := testChecker(time.Minute)
	src := &fakeSource{
		rounds: [][]playwright.Cookie{nil, {cookie("a", "1", "dewu.com")}},
		errs:   []error{errors.New("temporary")},
	}

	require.NoError(t, cc.waitFor(context.Background(), src, CookieConfig{Domain: "dewu.com"}))
	assert.Equal(t, 2, src.calls)
}

func TestWaitFor_BrowserClosedStops(t *testing.T) {
	cc, _ := testChecker(time.Minute)
	src := &fakeSource{
		rounds: [][]playwright.Cookie{nil},
		errs:   []error{errors.New("Target page, context or browser has been closed")},
	}

	err := cc.waitFor(context.Background(), src, CookieConfig{Domain: "dewu.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "浏览器已关闭")
	assert.Equal(t, 1, src.calls)
}

func TestWaitFor_ContextCancelled(t *testing.T) {
	cc, _ := testChecker(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cc.waitFor(ctx, &fakeSource{rounds: [][]playwright.Cookie{nil}}, CookieConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsBrowserClosedError(t *testing.T) {
	assert.False(t, isBrowserClosedError(nil))
	assert.False(t, isBrowserClosedError(errors.New("timeout")))
	assert.True(t, isBrowserClosedError(errors.New("page.evaluate: target closed")))
}
