package htmldoc

import (
	"context"
	"testing"

	"Multipost/internal/platform/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div id="form">
  <input id="title" type="text">
  <div contenteditable="true" class="editor"><p>旧内容</p></div>
  <textarea name="desc"></textarea>
  <input type="file" id="video" style="display: none">
  <input type="hidden" id="token" value="x">
</div>
<div hidden><button id="ghost">确定</button></div>
<div style="visibility: hidden"><span id="invisible">隐藏</span></div>
</body></html>`

func TestQueryAll(t *testing.T) {
	ctx := context.Background()
	d := MustParse(page)

	els, err := d.QueryAll(ctx, "input")
	require.NoError(t, err)
	assert.Len(t, els, 3)

	form, err := d.QueryAll(ctx, "#form")
	require.NoError(t, err)
	require.Len(t, form, 1)
	inner, err := form[0].QueryAll(ctx, "input[type=\"file\"]")
	require.NoError(t, err)
	require.Len(t, inner, 1)
	id, ok, err := inner[0].Attr(ctx, "id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "video", id)

	_, err = d.QueryAll(ctx, "div[")
	assert.Error(t, err)
}

func TestVisible(t *testing.T) {
	ctx := context.Background()
	d := MustParse(page)

	cases := map[string]bool{
		"#title":     true,
		"#video":     false,
		"#token":     false,
		"#ghost":     false,
		"#invisible": false,
	}
	for sel, want := range cases {
		els, err := d.QueryAll(ctx, sel)
		require.NoError(t, err)
		require.Len(t, els, 1, sel)
		got, err := els[0].Visible(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, sel)
	}

	d.Show("div[hidden]")
	ghost, _ := d.QueryAll(ctx, "#ghost")
	visible, _ := ghost[0].Visible(ctx)
	assert.True(t, visible)
}

func TestKind(t *testing.T) {
	ctx := context.Background()
	d := MustParse(page)

	for sel, want := range map[string]dom.ControlKind{
		"#title":   dom.KindPlain,
		".editor":  dom.KindRichText,
		"textarea": dom.KindTextArea,
	} {
		els, _ := d.QueryAll(ctx, sel)
		kind, err := els[0].Kind(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, kind, sel)
	}
}

func TestMutationsAreJournaled(t *testing.T) {
	ctx := context.Background()
	d := MustParse(page)

	title, _ := d.QueryAll(ctx, "#title")
	require.NoError(t, title[0].SetValue(ctx, "标题"))
	require.NoError(t, title[0].Dispatch(ctx, "input"))
	require.NoError(t, title[0].Dispatch(ctx, "change"))

	editor, _ := d.QueryAll(ctx, ".editor")
	require.NoError(t, editor[0].SetText(ctx, "新内容"))

	assert.Equal(t, "标题", d.Value("#title"))
	assert.Equal(t, []string{"input", "change"}, d.Events("#title"))
	assert.Equal(t, "新内容", d.Text(".editor"))
	assert.Len(t, d.Mutations(OpEvent), 2)

	video, _ := d.QueryAll(ctx, "#video")
	require.NoError(t, video[0].SetFiles(ctx, dom.File{Name: "v.mp4", MimeType: "video/mp4", Data: []byte{1}}))
	files := d.Files("#video")
	require.Len(t, files, 1)
	assert.Equal(t, "v.mp4", files[0].Name)

	err := editor[0].SetFiles(ctx, dom.File{Name: "x"})
	assert.Error(t, err)
}

func TestClickHooks(t *testing.T) {
	ctx := context.Background()
	d := MustParse(page)
	require.NoError(t, d.OnClick("#title", func() { d.Show("div[hidden]") }))

	title, _ := d.QueryAll(ctx, "#title")
	require.NoError(t, title[0].Click(ctx))

	assert.True(t, d.Clicked("#title"))
	assert.False(t, d.Clicked("#ghost"))
	ghost, _ := d.QueryAll(ctx, "#ghost")
	visible, _ := ghost[0].Visible(ctx)
	assert.True(t, visible)
}

func TestCreateAndRemoveFileInput(t *testing.T) {
	ctx := context.Background()
	d := MustParse(page)

	input, err := d.CreateFileInput(ctx, "tmp_1", "image/*")
	require.NoError(t, err)
	assert.True(t, d.Exists("#tmp_1"))
	visible, _ := input.Visible(ctx)
	assert.False(t, visible)

	require.NoError(t, input.Remove(ctx))
	assert.False(t, d.Exists("#tmp_1"))

	ops := d.Journal()
	require.Len(t, ops, 2)
	assert.Equal(t, OpCreate, ops[0].Op)
	assert.Equal(t, "input#tmp_1", ops[0].Target)
	assert.Equal(t, OpRemove, ops[1].Op)
}

func TestClosestAndParent(t *testing.T) {
	ctx := context.Background()
	d := MustParse(page)

	span, _ := d.QueryAll(ctx, "#invisible")
	div, err := span[0].Closest(ctx, "div")
	require.NoError(t, err)
	require.NotNil(t, div)
	style, _, _ := div.Attr(ctx, "style")
	assert.Equal(t, "visibility: hidden", style)

	none, err := span[0].Closest(ctx, "form")
	require.NoError(t, err)
	assert.Nil(t, none)

	form, _ := d.QueryAll(ctx, "#form")
	count, err := form[0].ChildCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	parent, err := span[0].Parent(ctx)
	require.NoError(t, err)
	tag, _ := parent.TagName(ctx)
	assert.Equal(t, "DIV", tag)
}
