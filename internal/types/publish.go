package types

import "context"

// MediaRef 媒体引用，URL 支持 http(s):// 与 s3://bucket/key
type MediaRef struct {
	URL      string `json:"url" yaml:"url"`
	Name     string `json:"name" yaml:"name"`
	MimeType string `json:"type,omitempty" yaml:"type,omitempty"` // 可选，为空时按资源类型取默认值
}

// PublishRequest 一次发布请求，执行期间不可修改
type PublishRequest struct {
	Content     string    `json:"content"`
	Video       *MediaRef `json:"video"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	Cover       *MediaRef `json:"cover,omitempty"`
	AutoPublish bool      `json:"isAutoPublish"`
}

// HasVideo 请求是否携带可用的视频引用
func (r *PublishRequest) HasVideo() bool {
	return r != nil && r.Video != nil && r.Video.URL != ""
}

// Uploader 上传器接口
type Uploader interface {
	ValidateCookie(ctx context.Context) (bool, error)
	Upload(ctx context.Context, req *PublishRequest) error
	Login(ctx context.Context) error
	Platform() string
}
