package engine

import (
	"strings"

	"Multipost/internal/platform/dom"
)

// RatioRule 宽高比不小于 Min 时优先选择 Label，缺失时再尝试 Fallback
type RatioRule struct {
	Min      float64 `yaml:"min"`
	Label    string  `yaml:"label"`
	Fallback string  `yaml:"fallback,omitempty"`
}

// AspectPolicy 按 Min 从大到小排列的规则表
type AspectPolicy struct {
	Rules []RatioRule `yaml:"rules"`
}

// DefaultAspectPolicy 横屏 4:3（其次 16:9），接近方形 1:1，竖屏 3:4
func DefaultAspectPolicy() AspectPolicy {
	return AspectPolicy{Rules: []RatioRule{
		{Min: 1.5, Label: "4:3", Fallback: "16:9"},
		{Min: 0.8, Label: "1:1"},
		{Min: 0, Label: "3:4"},
	}}
}

// RatioOption 页面上的一个比例选项
type RatioOption struct {
	Label   string
	Element dom.Element
}

// Rule 返回 ratio 命中的规则
func (p AspectPolicy) Rule(ratio float64) RatioRule {
	for _, r := range p.Rules {
		if ratio >= r.Min {
			return r
		}
	}
	if n := len(p.Rules); n > 0 {
		return p.Rules[n-1]
	}
	return RatioRule{}
}

// Labels 规则表中出现的所有标签，用于在页面上收集候选项
func (p AspectPolicy) Labels() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range p.Rules {
		for _, l := range []string{r.Label, r.Fallback} {
			if l != "" && !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

// SelectRatio 依次尝试：首选标签、备选标签、包含首选标签的选项、第一个选项
// available 为空时返回 false
func (p AspectPolicy) SelectRatio(ratio float64, available []RatioOption) (RatioOption, bool) {
	if len(available) == 0 {
		return RatioOption{}, false
	}
	rule := p.Rule(ratio)

	if opt, ok := findLabel(available, rule.Label, true); ok {
		return opt, true
	}
	if rule.Fallback != "" {
		if opt, ok := findLabel(available, rule.Fallback, true); ok {
			return opt, true
		}
	}
	if opt, ok := findLabel(available, rule.Label, false); ok {
		return opt, true
	}
	return available[0], true
}

func findLabel(options []RatioOption, label string, exact bool) (RatioOption, bool) {
	if label == "" {
		return RatioOption{}, false
	}
	for _, o := range options {
		text := strings.TrimSpace(o.Label)
		if (exact && text == label) || (!exact && strings.Contains(text, label)) {
			return o, true
		}
	}
	return RatioOption{}, false
}
