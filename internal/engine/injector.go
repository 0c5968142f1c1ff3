package engine

import (
	"context"
	"fmt"

	"Multipost/internal/platform/dom"
)

// CoverAccept 临时封面输入框接受的类型
const CoverAccept = "image/*,.jpg,.jpeg,.png,.webp"

// Inject 把 asset 作为唯一文件放入文件输入框并派发 change
func Inject(ctx context.Context, input dom.Element, asset *BinaryAsset) error {
	if asset == nil {
		return fmt.Errorf("nil asset")
	}
	if err := input.SetFiles(ctx, asset.File()); err != nil {
		return fmt.Errorf("set files failed: %w", err)
	}
	if err := input.Dispatch(ctx, "change"); err != nil {
		return fmt.Errorf("dispatch change failed: %w", err)
	}
	return nil
}

// InjectTemporary 创建临时隐藏输入框注入文件，then 返回后无论成败都移除输入框
// 页面上找不到可用的文件输入框时使用
func InjectTemporary(ctx context.Context, doc dom.Document, id, accept string, asset *BinaryAsset, then func(context.Context) error) (err error) {
	input, err := doc.CreateFileInput(ctx, id, accept)
	if err != nil {
		return fmt.Errorf("create temporary input failed: %w", err)
	}
	defer func() {
		// ctx 可能已被取消，移除仍要执行
		if rmErr := input.Remove(context.WithoutCancel(ctx)); rmErr != nil && err == nil {
			err = fmt.Errorf("remove temporary input failed: %w", rmErr)
		}
	}()
	if err := Inject(ctx, input, asset); err != nil {
		return err
	}
	if then != nil {
		return then(ctx)
	}
	return nil
}
