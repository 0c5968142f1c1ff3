package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Duration YAML 中以 "3s"、"1m30s" 形式书写的时长
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

// StrategySpec 一条定位策略的声明
//
// 按以下优先级决定策略类型：text > texts > attr > tag > selector
type StrategySpec struct {
	Name         string   `yaml:"name,omitempty"`
	Selector     string   `yaml:"selector,omitempty"`
	Text         string   `yaml:"text,omitempty"`
	Texts        []string `yaml:"texts,omitempty"`
	Match        string   `yaml:"match,omitempty"` // exact | contains
	MaxLen       int      `yaml:"max_len,omitempty"`
	Attr         string   `yaml:"attr,omitempty"`
	AttrContains []string `yaml:"attr_contains,omitempty"`
	Tag          string   `yaml:"tag,omitempty"`
	MinChildren  int      `yaml:"min_children,omitempty"`
	Closest      string   `yaml:"closest,omitempty"`
	AllowHidden  bool     `yaml:"allow_hidden,omitempty"`
}

// Build 把声明转成可执行的策略
func (s StrategySpec) Build() (Strategy, error) {
	selector := s.Selector
	if selector == "" {
		selector = "*"
	}
	if err := checkSelector(selector); err != nil {
		return Strategy{}, err
	}

	var st Strategy
	switch {
	case s.Text != "":
		match := MatchExact
		switch s.Match {
		case "", "exact":
		case "contains":
			match = MatchContains
		default:
			return Strategy{}, fmt.Errorf("unknown match mode %q", s.Match)
		}
		st = Text(selector, s.Text, match, s.MaxLen)
	case len(s.Texts) > 0:
		st = TextAll(selector, s.Texts...)
	case s.Attr != "":
		if len(s.AttrContains) == 0 {
			return Strategy{}, fmt.Errorf("attr %q requires attr_contains", s.Attr)
		}
		st = Icon(selector, s.Attr, s.AttrContains...)
	case s.Tag != "":
		st = Container(selector, s.Tag, s.MinChildren)
	default:
		if s.Selector == "" {
			return Strategy{}, errors.New("empty strategy")
		}
		st = Selector(selector)
	}

	if s.Closest != "" {
		if err := checkSelector(s.Closest); err != nil {
			return Strategy{}, err
		}
		st = Closest(st, s.Closest)
	}
	if s.AllowHidden {
		st = st.Hidden()
	}
	if s.Name != "" {
		st.Name = s.Name
	}
	return st, nil
}

func checkSelector(selector string) error {
	if _, err := cascadia.Compile(selector); err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return nil
}

// Chain 按顺序尝试的一组策略
type Chain []StrategySpec

// Build 构建整条链，空链返回 nil
func (c Chain) Build() ([]Strategy, error) {
	out := make([]Strategy, 0, len(c))
	for i, spec := range c {
		st, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		out = append(out, st)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Field 来源
const (
	SourceContent = "content"
	SourceTitle   = "title"
)

// FieldSpec 一个待填写的文本字段
type FieldSpec struct {
	Name       string   `yaml:"name"`
	Source     string   `yaml:"source"`
	Strategies Chain    `yaml:"strategies"`
	Delay      Duration `yaml:"delay"`
	MaxLength  int      `yaml:"max_length,omitempty"`
}

// TabSpec 需要激活的标签页
type TabSpec struct {
	Strategies  Chain  `yaml:"strategies"`
	ActiveClass string `yaml:"active_class,omitempty"`
}

// CoverSpec 封面上传流程
type CoverSpec struct {
	Open            Chain        `yaml:"open"`
	UploadTab       Chain        `yaml:"upload_tab"`
	DropZone        Chain        `yaml:"drop_zone"`
	FileInput       Chain        `yaml:"file_input"`
	TempInputPrefix string       `yaml:"temp_input_prefix"`
	Accept          string       `yaml:"accept"`
	ClickDropZone   bool         `yaml:"click_drop_zone"`
	RatioSection    string       `yaml:"ratio_section"`
	RatioLabels     []string     `yaml:"ratio_labels"`
	Ratios          AspectPolicy `yaml:"ratios"`
	Confirm         Chain        `yaml:"confirm"`
}

// Timing 流程中的固定等待
type Timing struct {
	BeforeUpload  Duration `yaml:"before_upload"`
	TabSwitch     Duration `yaml:"tab_switch"`
	FillStart     Duration `yaml:"fill_start"`
	UploadTimeout Duration `yaml:"upload_timeout"`
	UploadPoll    Duration `yaml:"upload_poll"`
	CoverStart    Duration `yaml:"cover_start"`
	CoverDialog   Duration `yaml:"cover_dialog"`
	CoverTab      Duration `yaml:"cover_tab"`
	CoverInject   Duration `yaml:"cover_inject"`
	CoverUpload   Duration `yaml:"cover_upload"`
	RatioSelect   Duration `yaml:"ratio_select"`
	CoverConfirm  Duration `yaml:"cover_confirm"`
	SubmitSettle  Duration `yaml:"submit_settle"`
}

// LoginSpec 登录态检查
type LoginSpec struct {
	URL             string   `yaml:"url,omitempty"`
	CookieDomain    string   `yaml:"cookie_domain"`
	RequiredCookies []string `yaml:"required_cookies,omitempty"`
	SessionCookies  []string `yaml:"session_cookies,omitempty"` // 登录后才出现的会话 Cookie，任意一个存在即可
}

// Profile 单个发布目标的页面描述，引擎按它执行同一套流程
type Profile struct {
	Platform   string      `yaml:"platform"`
	URL        string      `yaml:"url"`
	UploadTab  TabSpec     `yaml:"upload_tab"`
	VideoInput Chain       `yaml:"video_input"`
	UploadDone Chain       `yaml:"upload_done,omitempty"`
	Fields     []FieldSpec `yaml:"fields"`
	Cover      CoverSpec   `yaml:"cover"`
	Submit     Chain       `yaml:"submit"`
	Timing     Timing      `yaml:"timing"`
	Login      LoginSpec   `yaml:"login"`
}

// Validate 检查必填项并尝试构建所有策略
func (p *Profile) Validate() error {
	if p.Platform == "" {
		return errors.New("profile: platform is required")
	}
	if len(p.VideoInput) == 0 {
		return errors.New("profile: video_input is required")
	}
	for _, f := range p.Fields {
		if f.Source != SourceContent && f.Source != SourceTitle {
			return fmt.Errorf("profile: field %q has unknown source %q", f.Name, f.Source)
		}
	}
	if p.Login.CookieDomain != "" && len(p.Login.RequiredCookies) == 0 && len(p.Login.SessionCookies) == 0 {
		return errors.New("profile: login needs required_cookies or session_cookies")
	}
	_, err := compile(p)
	return err
}

// Marshal 输出 YAML
func (p *Profile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeProfile 解析 YAML，不认识的字段视为错误
func DecodeProfile(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile failed: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile 从文件加载
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile %s failed: %w", path, err)
	}
	defer f.Close()
	return DecodeProfile(f)
}

type compiledField struct {
	spec       FieldSpec
	strategies []Strategy
}

type compiledProfile struct {
	uploadTab    []Strategy
	videoInput   []Strategy
	uploadDone   []Strategy
	fields       []compiledField
	coverOpen    []Strategy
	coverTab     []Strategy
	dropZone     []Strategy
	coverInput   []Strategy
	coverConfirm []Strategy
	submit       []Strategy
}

func compile(p *Profile) (*compiledProfile, error) {
	c := &compiledProfile{}
	chains := []struct {
		name  string
		chain Chain
		dst   *[]Strategy
	}{
		{"upload_tab", p.UploadTab.Strategies, &c.uploadTab},
		{"video_input", p.VideoInput, &c.videoInput},
		{"upload_done", p.UploadDone, &c.uploadDone},
		{"cover.open", p.Cover.Open, &c.coverOpen},
		{"cover.upload_tab", p.Cover.UploadTab, &c.coverTab},
		{"cover.drop_zone", p.Cover.DropZone, &c.dropZone},
		{"cover.file_input", p.Cover.FileInput, &c.coverInput},
		{"cover.confirm", p.Cover.Confirm, &c.coverConfirm},
		{"submit", p.Submit, &c.submit},
	}
	for _, ch := range chains {
		built, err := ch.chain.Build()
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", ch.name, err)
		}
		*ch.dst = built
	}
	for _, f := range p.Fields {
		built, err := f.Strategies.Build()
		if err != nil {
			return nil, fmt.Errorf("profile field %s: %w", f.Name, err)
		}
		c.fields = append(c.fields, compiledField{spec: f, strategies: built})
	}
	return c, nil
}
