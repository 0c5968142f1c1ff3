package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"strings"
	"time"

	"Multipost/internal/config"
	"Multipost/internal/platform/dom"
	"Multipost/internal/types"

	"github.com/imroc/req/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	DefaultVideoMimeType = "video/mp4"
	DefaultCoverMimeType = "image/jpeg"
)

// AssetKind 资源类别，决定默认 MIME 类型
type AssetKind int

const (
	AssetVideo AssetKind = iota
	AssetCover
)

func (k AssetKind) String() string {
	if k == AssetCover {
		return "cover"
	}
	return "video"
}

func (k AssetKind) defaultMimeType() string {
	if k == AssetCover {
		return DefaultCoverMimeType
	}
	return DefaultVideoMimeType
}

// BinaryAsset 下载到内存中的文件
type BinaryAsset struct {
	Name     string
	MimeType string
	Data     []byte
	Source   string
}

// File 转换为待注入的文件
func (a *BinaryAsset) File() dom.File {
	return dom.File{Name: a.Name, MimeType: a.MimeType, Data: a.Data}
}

func (a *BinaryAsset) Size() int { return len(a.Data) }

// NewBinaryAsset 包装已下载的字节，MIME 类型为空时按资源类别取默认值
func NewBinaryAsset(ref types.MediaRef, kind AssetKind, data []byte) *BinaryAsset {
	mimeType := strings.TrimSpace(ref.MimeType)
	if mimeType == "" {
		mimeType = kind.defaultMimeType()
	}
	return &BinaryAsset{Name: ref.Name, MimeType: mimeType, Data: data, Source: ref.URL}
}

// TransferError 下载失败或响应为空
type TransferError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("下载 %s 失败: HTTP %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("下载 %s 失败: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("下载 %s 失败", e.URL)
	}
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

var errEmptyBody = errors.New("响应内容为空")

// Fetcher 媒体下载接口
type Fetcher interface {
	Fetch(ctx context.Context, ref types.MediaRef, kind AssetKind) (*BinaryAsset, error)
}

type objectStore interface {
	get(ctx context.Context, bucket, key string) ([]byte, error)
}

type minioStore struct {
	client *minio.Client
}

func (s *minioStore) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// MediaFetcher 通过 HTTP 或对象存储下载媒体，整个响应读入内存
type MediaFetcher struct {
	client *req.Client
	store  objectStore
}

type FetcherOption func(*MediaFetcher) error

// WithTimeout 设置单次下载超时
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *MediaFetcher) error {
		f.client.SetTimeout(d)
		return nil
	}
}

// WithObjectStore 启用 s3:// 引用，Endpoint 为空时不启用
func WithObjectStore(cfg config.ObjectStoreConfig) FetcherOption {
	return func(f *MediaFetcher) error {
		if cfg.Endpoint == "" {
			return nil
		}
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return fmt.Errorf("create object store client failed: %w", err)
		}
		f.store = &minioStore{client: client}
		return nil
	}
}

// NewMediaFetcher 创建下载器
func NewMediaFetcher(opts ...FetcherOption) (*MediaFetcher, error) {
	f := &MediaFetcher{
		client: req.C().
			SetTimeout(config.DefaultFetchTimeout).
			SetCommonRetryCount(0),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *MediaFetcher) Fetch(ctx context.Context, ref types.MediaRef, kind AssetKind) (*BinaryAsset, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(ref.URL, "s3://") {
		data, err = f.fetchObject(ctx, ref.URL)
	} else {
		data, err = f.fetchHTTP(ctx, ref.URL)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &TransferError{URL: ref.URL, Err: errEmptyBody}
	}
	return NewBinaryAsset(ref, kind, data), nil
}

func (f *MediaFetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, &TransferError{URL: rawURL, Err: err}
	}
	if resp.IsErrorState() {
		return nil, &TransferError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	data, err := resp.ToBytes()
	if err != nil {
		return nil, &TransferError{URL: rawURL, Err: err}
	}
	return data, nil
}

func (f *MediaFetcher) fetchObject(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := parseObjectURL(rawURL)
	if err != nil {
		return nil, &TransferError{URL: rawURL, Err: err}
	}
	if f.store == nil {
		return nil, &TransferError{URL: rawURL, Err: errors.New("对象存储未配置")}
	}
	data, err := f.store.get(ctx, bucket, key)
	if err != nil {
		return nil, &TransferError{URL: rawURL, Err: err}
	}
	return data, nil
}

// parseObjectURL 解析 s3://bucket/key
func parseObjectURL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("无效的对象地址: %s", rawURL)
	}
	return u.Host, key, nil
}

// describeImage 返回图片尺寸与格式，无法识别时返回空串
func describeImage(data []byte) string {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%dx%d %s", cfg.Width, cfg.Height, format)
}
