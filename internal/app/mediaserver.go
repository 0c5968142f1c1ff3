package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"Multipost/internal/types"
	"Multipost/internal/utils"

	"github.com/google/uuid"
)

// MediaServer 通过本地回环 HTTP 暴露本机媒体文件，使所有媒体都以 URL 形式交给下载器
type MediaServer struct {
	mutex    sync.RWMutex
	files    map[string]string // id -> 绝对路径
	listener net.Listener
	server   *http.Server
	baseURL  string
}

// NewMediaServer 创建媒体服务，Start 之前只能注册不能访问
func NewMediaServer() *MediaServer {
	return &MediaServer{files: make(map[string]string)}
}

// Start 在 addr 上监听，addr 端口为 0 时随机分配
func (s *MediaServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("媒体服务监听 %s 失败: %w", addr, err)
	}
	s.listener = ln
	s.baseURL = "http://" + ln.Addr().String()
	s.server = &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error(fmt.Sprintf("媒体服务异常退出: %v", err))
		}
	}()
	utils.Debug("媒体服务已启动: " + s.baseURL)
	return nil
}

// Close 关闭服务
func (s *MediaServer) Close(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Register 注册本地文件，返回可访问的 URL
func (s *MediaServer) Register(path string) (string, error) {
	if s.baseURL == "" {
		return "", errors.New("媒体服务未启动")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("文件不存在: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s 是目录", abs)
	}

	id := uuid.NewString()
	s.mutex.Lock()
	s.files[id] = abs
	s.mutex.Unlock()
	return s.baseURL + "/media/" + id + "/" + url.PathEscape(filepath.Base(abs)), nil
}

// Resolve 本地路径或 file:// 引用注册后改写为 HTTP 地址，其余原样返回
func (s *MediaServer) Resolve(ref *types.MediaRef) error {
	if ref == nil || !isLocalRef(ref.URL) {
		return nil
	}
	path := strings.TrimPrefix(ref.URL, "file://")
	u, err := s.Register(path)
	if err != nil {
		return err
	}
	if ref.Name == "" {
		ref.Name = filepath.Base(path)
	}
	if ref.MimeType == "" {
		if ct := getContentType(path); ct != "application/octet-stream" {
			ref.MimeType = ct
		}
	}
	ref.URL = u
	return nil
}

func isLocalRef(ref string) bool {
	if strings.HasPrefix(ref, "file://") {
		return true
	}
	for _, scheme := range []string{"http://", "https://", "s3://"} {
		if strings.HasPrefix(ref, scheme) {
			return false
		}
	}
	return ref != ""
}

// ServeHTTP 只响应 /media/<id>/<name>
func (s *MediaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/media/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	id, name, _ := strings.Cut(rest, "/")
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	s.mutex.RLock()
	filePath, ok := s.files[id]
	s.mutex.RUnlock()
	if !ok || (name != "" && name != filepath.Base(filePath)) {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", getContentType(filePath))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// getContentType 根据文件扩展名获取 Content-Type
func getContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
