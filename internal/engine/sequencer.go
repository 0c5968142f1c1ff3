package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Multipost/internal/platform/dom"
	"Multipost/internal/types"
	"Multipost/internal/utils"
	"Multipost/internal/utils/wait"

	"github.com/google/uuid"
)

// State 发布流程状态
type State string

const (
	StateIdle           State = "idle"
	StateGuarded        State = "guarded"
	StateUploadingVideo State = "uploading_video"
	StateFillingFields  State = "filling_fields"
	StateAwaitingUpload State = "awaiting_upload"
	StateUploadingCover State = "uploading_cover"
	StateSubmitting     State = "submitting"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Prober 读取视频元数据，source 为视频地址
type Prober func(ctx context.Context, source string) (utils.VideoMetadata, error)

// Report 一次运行的结果
type Report struct {
	RunID    string
	Skipped  bool
	State    State
	Outcomes []Outcome
	Err      *StepError
}

// Outcome 返回某步骤最后一次结果
func (r *Report) Outcome(step Step) (Outcome, bool) {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if r.Outcomes[i].Step == step {
			return r.Outcomes[i], true
		}
	}
	return Outcome{}, false
}

// Engine 按 Profile 执行发布流程，同一实例同一时间只允许一个流程
type Engine struct {
	profile  *Profile
	compiled *compiledProfile
	policy   AspectPolicy

	guard    RunGuard
	clock    wait.Clock
	fetcher  Fetcher
	prober   Prober
	observer func(types.Event)
}

type Option func(*Engine)

func WithClock(clock wait.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithFetcher(f Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

func WithProber(p Prober) Option {
	return func(e *Engine) { e.prober = p }
}

// WithObserver 订阅状态变更与步骤结果，回调在流程内同步执行
func WithObserver(fn func(types.Event)) Option {
	return func(e *Engine) { e.observer = fn }
}

// New 创建引擎，profile 中的策略在此一次性构建
func New(profile *Profile, opts ...Option) (*Engine, error) {
	if profile == nil {
		return nil, errors.New("nil profile")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	compiled, err := compile(profile)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		profile:  profile,
		compiled: compiled,
		policy:   profile.Cover.Ratios,
		clock:    wait.RealClock(),
	}
	if len(e.policy.Rules) == 0 {
		e.policy = DefaultAspectPolicy()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		f, err := NewMediaFetcher()
		if err != nil {
			return nil, err
		}
		e.fetcher = f
	}
	return e, nil
}

func (e *Engine) Profile() *Profile { return e.profile }

// Running 是否有流程正在执行
func (e *Engine) Running() bool { return e.guard.Running() }

func (e *Engine) emit(ev types.Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

// Run 在 doc 上执行一次发布
//
// 已有流程在运行时直接返回 Skipped 报告，不触碰页面。
// 缺少视频时记录失败但不返回错误；其余致命错误以 *StepError 返回。
func (e *Engine) Run(ctx context.Context, doc dom.Document, req *types.PublishRequest) (*Report, error) {
	if skipped, ok := e.Acquire(); !ok {
		return skipped, nil
	}
	return e.RunAcquired(ctx, doc, req)
}

// Acquire 占用引擎，调用方可以先准备页面再执行
// 已有流程在运行时返回 Skipped 报告和 false；成功后必须调用 RunAcquired 或 Release
func (e *Engine) Acquire() (*Report, bool) {
	if e.guard.TryAcquire() {
		return nil, true
	}
	platform := e.profile.Platform
	utils.WarnWithPlatform(platform, "发布流程已在运行中，跳过重复执行")
	e.emit(types.RunSkippedEvent{Platform: platform})
	return &Report{Skipped: true, State: StateIdle}, false
}

// Release 放弃 Acquire 得到的占用
func (e *Engine) Release() { e.guard.Release() }

// RunAcquired 在 Acquire 成功后执行发布，返回前释放占用
func (e *Engine) RunAcquired(ctx context.Context, doc dom.Document, req *types.PublishRequest) (report *Report, err error) {
	r := &run{
		engine: e,
		doc:    doc,
		req:    req,
		meta:   utils.DefaultVideoMetadata,
		report: &Report{RunID: uuid.NewString(), State: StateIdle},
	}
	defer func() {
		if p := recover(); p != nil {
			se := &StepError{Step: r.step, Kind: KindUnexpected, Err: fmt.Errorf("panic: %v", p)}
			r.fail(se)
			err = se
		}
		r.finish()
		e.guard.Release()
		report = r.report
	}()

	r.transition(StateGuarded)
	err = r.execute(ctx)
	return r.report, err
}

type step struct {
	name Step
	fn   func(ctx context.Context) Outcome
}

// run 单次流程的状态
type run struct {
	engine *Engine
	doc    dom.Document
	req    *types.PublishRequest
	meta   utils.VideoMetadata
	report *Report
	step   Step

	video      *BinaryAsset
	injectedAt time.Time
}

func (r *run) platform() string { return r.engine.profile.Platform }

func (r *run) timing() Timing { return r.engine.profile.Timing }

func (r *run) prefix() string { return "[" + r.report.RunID[:8] + "] " }

func (r *run) info(format string, args ...interface{}) {
	utils.InfoWithPlatform(r.platform(), r.prefix()+fmt.Sprintf(format, args...))
}

func (r *run) warn(format string, args ...interface{}) {
	utils.WarnWithPlatform(r.platform(), r.prefix()+fmt.Sprintf(format, args...))
}

func (r *run) debug(format string, args ...interface{}) {
	utils.DebugWithPlatform(r.platform(), r.prefix()+fmt.Sprintf(format, args...))
}

func (r *run) transition(to State) {
	from := r.report.State
	r.report.State = to
	r.debug("状态 %s -> %s", from, to)
	r.engine.emit(types.RunStateChangedEvent{RunID: r.report.RunID, Platform: r.platform(), From: string(from), To: string(to)})
}

func (r *run) record(o Outcome) Outcome {
	r.report.Outcomes = append(r.report.Outcomes, o)
	ev := types.StepOutcomeEvent{RunID: r.report.RunID, Platform: r.platform(), Step: string(o.Step), Outcome: o.Severity.String()}
	switch o.Severity {
	case Success:
		if o.Detail != "" {
			r.info("%s: %s", o.Step, o.Detail)
		}
	case Recoverable:
		ev.Error = o.Err.Error()
		r.warn("%s，继续执行", o.Err)
	case Fatal:
		ev.Error = o.Err.Error()
		utils.ErrorWithPlatform(r.platform(), r.prefix()+o.Err.Error())
	}
	r.engine.emit(ev)
	return o
}

// steps 依次执行，遇到致命结果立即停止
func (r *run) steps(ctx context.Context, steps ...step) *StepError {
	for _, s := range steps {
		r.step = s.name
		if o := r.record(s.fn(ctx)); o.Severity == Fatal {
			return o.Err
		}
	}
	return nil
}

func (r *run) fail(se *StepError) {
	if r.report.Err == nil {
		r.report.Err = se
	}
	if r.report.State != StateFailed {
		r.transition(StateFailed)
	}
}

func (r *run) finish() {
	ev := types.RunCompleteEvent{RunID: r.report.RunID, Platform: r.platform(), State: string(r.report.State)}
	if r.report.Err != nil {
		ev.Error = r.report.Err.Error()
	}
	if r.report.State == StateDone {
		utils.SuccessWithPlatform(r.platform(), r.prefix()+"发布流程完成")
	}
	r.engine.emit(ev)
}

// pause 经由时钟等待
func (r *run) pause(ctx context.Context, d Duration) error {
	return r.engine.clock.Sleep(ctx, d.Std())
}

func (r *run) execute(ctx context.Context) error {
	r.step = StepValidate
	if o := r.record(r.validate()); o.Severity == Fatal {
		r.fail(o.Err)
		return nil
	}

	r.transition(StateUploadingVideo)
	if se := r.steps(ctx,
		step{StepFetchVideo, r.fetchVideo},
		step{StepUploadTab, r.activateUploadTab},
		step{StepInjectVideo, r.injectVideo},
	); se != nil {
		r.fail(se)
		return se
	}

	r.transition(StateFillingFields)
	r.step = StepFillField
	if err := r.pause(ctx, r.timing().FillStart); err != nil {
		o := r.record(fatal(StepFillField, KindUnexpected, err))
		r.fail(o.Err)
		return o.Err
	}
	var fills []step
	for _, f := range r.engine.compiled.fields {
		f := f
		fills = append(fills, step{StepFillField, func(ctx context.Context) Outcome { return r.fillField(ctx, f) }})
	}
	if se := r.steps(ctx, fills...); se != nil {
		r.fail(se)
		return se
	}

	r.transition(StateAwaitingUpload)
	if se := r.steps(ctx, step{StepUploadWait, r.awaitUpload}); se != nil {
		r.fail(se)
		return se
	}

	if r.req.Cover != nil && r.req.Cover.URL != "" {
		r.transition(StateUploadingCover)
		if se := r.steps(ctx, step{StepCover, r.uploadCover}); se != nil {
			r.fail(se)
			return se
		}
	}

	if r.req.AutoPublish {
		r.transition(StateSubmitting)
		if se := r.steps(ctx, step{StepSubmit, r.submit}); se != nil {
			r.fail(se)
			return se
		}
	}

	r.transition(StateDone)
	return nil
}

func (r *run) validate() Outcome {
	if r.req == nil {
		return fatal(StepValidate, KindMissingInput, errors.New("发布请求为空"))
	}
	if !r.req.HasVideo() {
		return fatal(StepValidate, KindMissingInput, errors.New("缺少视频文件"))
	}
	return succeeded(StepValidate, "")
}

func (r *run) fetchVideo(ctx context.Context) Outcome {
	if prober := r.engine.prober; prober != nil {
		meta, err := prober(ctx, r.req.Video.URL)
		if err != nil {
			r.warn("读取视频信息失败，使用默认尺寸: %v", err)
		} else {
			r.meta = meta
		}
	}
	r.info("视频信息: %dx%d, 比例 %.2f", r.meta.Width, r.meta.Height, r.meta.AspectRatio())

	asset, err := r.engine.fetcher.Fetch(ctx, *r.req.Video, AssetVideo)
	if err != nil {
		return fatal(StepFetchVideo, KindTransfer, err)
	}
	r.video = asset

	if err := r.pause(ctx, r.timing().BeforeUpload); err != nil {
		return fatal(StepFetchVideo, KindUnexpected, err)
	}
	return succeeded(StepFetchVideo, fmt.Sprintf("视频下载完成 %s %s %d bytes", asset.Name, asset.MimeType, asset.Size()))
}

func (r *run) activateUploadTab(ctx context.Context) Outcome {
	strategies := r.engine.compiled.uploadTab
	if len(strategies) == 0 {
		return succeeded(StepUploadTab, "")
	}
	tab, _, err := Locate(ctx, r.doc, strategies)
	if err != nil {
		return fatal(StepUploadTab, KindUnexpected, err)
	}
	if tab == nil {
		return succeeded(StepUploadTab, "未找到上传标签页，保持当前页面")
	}

	if active := r.engine.profile.UploadTab.ActiveClass; active != "" {
		class, _, err := tab.Attr(ctx, "class")
		if err != nil {
			return fatal(StepUploadTab, KindUnexpected, err)
		}
		if hasClass(class, active) {
			return succeeded(StepUploadTab, "")
		}
	}
	if err := tab.Click(ctx); err != nil {
		return fatal(StepUploadTab, KindUnexpected, err)
	}
	if err := r.pause(ctx, r.timing().TabSwitch); err != nil {
		return fatal(StepUploadTab, KindUnexpected, err)
	}
	return succeeded(StepUploadTab, "已切换到上传标签页")
}

func (r *run) injectVideo(ctx context.Context) Outcome {
	input, name, err := Locate(ctx, r.doc, r.engine.compiled.videoInput)
	if err != nil {
		return fatal(StepInjectVideo, KindUnexpected, err)
	}
	if input == nil {
		return fatal(StepInjectVideo, KindElementNotFound, errors.New("页面上没有找到任何文件输入框"))
	}
	if err := Inject(ctx, input, r.video); err != nil {
		return fatal(StepInjectVideo, KindUnexpected, err)
	}
	r.injectedAt = r.engine.clock.Now()
	return succeeded(StepInjectVideo, "视频文件已设置 ("+name+")，开始上传")
}

func (r *run) fieldValue(spec FieldSpec) string {
	var value string
	switch spec.Source {
	case SourceContent:
		value = PlainText(MergeTags(r.req.Content, r.req.Tags))
	case SourceTitle:
		value = r.req.Title
	}
	return TruncateString(value, spec.MaxLength)
}

// fillField 单个字段失败不影响其他字段
func (r *run) fillField(ctx context.Context, f compiledField) Outcome {
	if err := r.pause(ctx, f.spec.Delay); err != nil {
		return fatal(StepFillField, KindUnexpected, err)
	}
	el, name, err := Locate(ctx, r.doc, f.strategies)
	if err != nil {
		return recoverable(StepFillField, KindUnexpected, fmt.Errorf("%s: %w", f.spec.Name, err))
	}
	if el == nil {
		return notFound(StepFillField, "未找到"+f.spec.Name+"输入框")
	}
	value := r.fieldValue(f.spec)
	kind, err := Fill(ctx, el, value)
	if err != nil {
		if ctx.Err() != nil {
			return fatal(StepFillField, KindUnexpected, err)
		}
		return recoverable(StepFillField, KindUnexpected, fmt.Errorf("%s: %w", f.spec.Name, err))
	}
	return succeeded(StepFillField, fmt.Sprintf("%s已填写 (%s, %s): %s", f.spec.Name, kind, name, TruncateString(value, 100)))
}

func (r *run) awaitUpload(ctx context.Context) Outcome {
	deadline := r.injectedAt.Add(r.timing().UploadTimeout.Std())
	var cond wait.Condition
	if done := r.engine.compiled.uploadDone; len(done) > 0 {
		cond = func(ctx context.Context) bool {
			el, _, err := Locate(ctx, r.doc, done)
			return err == nil && el != nil
		}
	}
	r.info("等待视频上传完成...")
	res, err := wait.Until(ctx, r.engine.clock, deadline, r.timing().UploadPoll.Std(), cond)
	if err != nil {
		return fatal(StepUploadWait, KindUnexpected, err)
	}
	switch {
	case res.Satisfied:
		return succeeded(StepUploadWait, fmt.Sprintf("检测到上传完成，用时 %s", res.Elapsed))
	case cond != nil:
		return succeeded(StepUploadWait, fmt.Sprintf("上传等待超时（%d 次检查），继续执行", res.Polls))
	default:
		return succeeded(StepUploadWait, "视频上传等待完成，继续执行")
	}
}

func (r *run) submit(ctx context.Context) Outcome {
	if err := r.pause(ctx, r.timing().SubmitSettle); err != nil {
		return fatal(StepSubmit, KindUnexpected, err)
	}
	btn, _, err := Locate(ctx, r.doc, r.engine.compiled.submit)
	if err != nil {
		return fatal(StepSubmit, KindUnexpected, err)
	}
	if btn == nil {
		return notFound(StepSubmit, "未找到发布按钮")
	}
	if err := btn.Click(ctx); err != nil {
		return fatal(StepSubmit, KindUnexpected, err)
	}
	return succeeded(StepSubmit, "已点击发布按钮")
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
