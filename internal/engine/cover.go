package engine

import (
	"context"
	"errors"
	"fmt"

	"Multipost/internal/platform/dom"
)

// uploadCover 封面流程内的任何失败都只记录，不中断发布
func (r *run) uploadCover(ctx context.Context) Outcome {
	detail, err := r.coverFlow(ctx)
	if err == nil {
		return succeeded(StepCover, detail)
	}
	if ctx.Err() != nil {
		return fatal(StepCover, KindUnexpected, err)
	}
	var se *StepError
	if errors.As(err, &se) {
		return Outcome{Step: StepCover, Severity: Recoverable, Err: se}
	}
	return recoverable(StepCover, KindUnexpected, err)
}

func coverNotFound(what string) error {
	return &StepError{Step: StepCover, Kind: KindElementNotFound, Err: errors.New(what)}
}

func (r *run) coverFlow(ctx context.Context) (string, error) {
	c := r.engine.compiled
	t := r.timing()

	r.info("开始上传封面: %s", r.req.Cover.Name)
	if err := r.pause(ctx, t.CoverStart); err != nil {
		return "", err
	}

	open, name, err := Locate(ctx, r.doc, c.coverOpen)
	if err != nil {
		return "", err
	}
	if open == nil {
		return "", coverNotFound("未找到编辑封面按钮")
	}
	r.debug("找到编辑封面按钮: %s", name)
	if err := open.Click(ctx); err != nil {
		return "", err
	}
	if err := r.pause(ctx, t.CoverDialog); err != nil {
		return "", err
	}

	if len(c.coverTab) > 0 {
		tab, _, err := Locate(ctx, r.doc, c.coverTab)
		if err != nil {
			return "", err
		}
		if tab != nil {
			if err := tab.Click(ctx); err != nil {
				return "", err
			}
			if err := r.pause(ctx, t.CoverTab); err != nil {
				return "", err
			}
		}
	}

	zone, name, err := Locate(ctx, r.doc, c.dropZone)
	if err != nil {
		return "", err
	}
	if zone == nil {
		return "", coverNotFound("未找到上传区域")
	}
	r.debug("找到上传区域: %s", name)

	asset, err := r.engine.fetcher.Fetch(ctx, *r.req.Cover, AssetCover)
	if err != nil {
		return "", &StepError{Step: StepCover, Kind: KindTransfer, Err: err}
	}
	if info := describeImage(asset.Data); info != "" {
		r.info("封面文件: %s %s %d bytes (%s)", asset.Name, asset.MimeType, asset.Size(), info)
	} else {
		r.info("封面文件: %s %s %d bytes", asset.Name, asset.MimeType, asset.Size())
	}

	if err := r.injectCover(ctx, zone, asset); err != nil {
		return "", err
	}
	if err := r.pause(ctx, t.CoverUpload); err != nil {
		return "", err
	}

	if err := r.selectRatio(ctx); err != nil {
		return "", err
	}

	confirm, _, err := Locate(ctx, r.doc, c.coverConfirm)
	if err != nil {
		return "", err
	}
	if confirm == nil {
		return "", coverNotFound("未找到确定按钮，可能需要手动确认")
	}
	if err := confirm.Click(ctx); err != nil {
		return "", err
	}
	if err := r.pause(ctx, t.CoverConfirm); err != nil {
		return "", err
	}
	return "封面上传完成", nil
}

// injectCover 优先使用上传区域内已有的文件输入框，没有时创建临时输入框
func (r *run) injectCover(ctx context.Context, zone dom.Element, asset *BinaryAsset) error {
	spec := r.engine.profile.Cover
	t := r.timing()

	// 注入后的等待和点击都在临时输入框移除之前完成
	afterInject := func(ctx context.Context) error {
		if err := r.pause(ctx, t.CoverInject); err != nil {
			return err
		}
		if !spec.ClickDropZone {
			return nil
		}
		if err := zone.Click(ctx); err != nil {
			return err
		}
		return r.pause(ctx, t.CoverInject)
	}

	if len(r.engine.compiled.coverInput) > 0 {
		input, _, err := Locate(ctx, zone, r.engine.compiled.coverInput)
		if err != nil {
			return err
		}
		if input != nil {
			if err := Inject(ctx, input, asset); err != nil {
				return err
			}
			return afterInject(ctx)
		}
	}

	id := fmt.Sprintf("%s%d", spec.TempInputPrefix, r.engine.clock.Now().UnixMilli())
	accept := spec.Accept
	if accept == "" {
		accept = CoverAccept
	}
	r.debug("上传区域内没有文件输入框，创建临时输入框 %s", id)
	return InjectTemporary(ctx, r.doc, id, accept, asset, afterInject)
}

func (r *run) ratioLabels() []string {
	if labels := r.engine.profile.Cover.RatioLabels; len(labels) > 0 {
		return labels
	}
	return r.engine.policy.Labels()
}

// ratioOptions 先在比例标题所在区域内查找，找不到再全局查找完全匹配的选项
func (r *run) ratioOptions(ctx context.Context) ([]RatioOption, error) {
	labels := r.ratioLabels()
	var els []dom.Element

	if section := r.engine.profile.Cover.RatioSection; section != "" {
		title, _, err := Locate(ctx, r.doc, []Strategy{Text("*", section, MatchContains, 0).Hidden()})
		if err != nil {
			return nil, err
		}
		if title != nil {
			container, err := title.Parent(ctx)
			if err != nil {
				return nil, err
			}
			if container == nil {
				container = title
			}
			if els, err = TextAny("*", labels...).Find(ctx, container); err != nil {
				return nil, err
			}
		}
	}
	if len(els) == 0 {
		var err error
		if els, err = TextOneOf("*", labels...).Find(ctx, r.doc); err != nil {
			return nil, err
		}
	}

	options := make([]RatioOption, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		options = append(options, RatioOption{Label: text, Element: el})
	}
	return options, nil
}

func (r *run) selectRatio(ctx context.Context) error {
	ratio := r.meta.AspectRatio()
	options, err := r.ratioOptions(ctx)
	if err != nil {
		return err
	}
	opt, ok := r.engine.policy.SelectRatio(ratio, options)
	if !ok {
		r.warn("未找到封面裁剪比例选项，跳过此步骤")
		return nil
	}
	r.info("视频比例 %.2f，选择封面裁剪比例 %s", ratio, opt.Label)

	tag, err := opt.Element.TagName(ctx)
	if err != nil {
		return err
	}
	if tag == "INPUT" {
		if err := opt.Element.SetChecked(ctx, true); err != nil {
			return err
		}
		if err := opt.Element.Dispatch(ctx, "change"); err != nil {
			return err
		}
	} else if err := opt.Element.Click(ctx); err != nil {
		return err
	}
	return r.pause(ctx, r.timing().RatioSelect)
}
