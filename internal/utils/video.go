package utils

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoMetadata 视频基础信息
type VideoMetadata struct {
	Duration float64
	Width    int
	Height   int
}

// DefaultVideoMetadata 无法探测时使用的默认尺寸
var DefaultVideoMetadata = VideoMetadata{Width: 1280, Height: 720}

// AspectRatio 宽高比，高度为0时返回0
func (m VideoMetadata) AspectRatio() float64 {
	if m.Height == 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

// CheckFFprobe 检查系统是否安装了 ffprobe
func CheckFFprobe() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// ProbeVideo 使用系统 ffprobe 读取视频尺寸和时长
// source 可以是本地路径或 http 地址
func ProbeVideo(ctx context.Context, source string) (VideoMetadata, error) {
	if !CheckFFprobe() {
		return VideoMetadata{}, fmt.Errorf("系统未安装 ffprobe，无法读取视频信息")
	}

	// -select_streams v:0 只看第一条视频流
	// 输出形如 1920,1080,12.345
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-of", "csv=p=0:s=,",
		source,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return VideoMetadata{}, fmt.Errorf("ffprobe 执行失败: %v, 输出: %s", err, string(output))
	}
	return ParseProbeOutput(string(output))
}

// ParseProbeOutput 解析 ffprobe csv 输出
// 流信息与格式信息分两行输出：第一行 宽,高，第二行 时长
func ParseProbeOutput(output string) (VideoMetadata, error) {
	var meta VideoMetadata
	var fields []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, f := range strings.Split(line, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}
	if len(fields) < 2 {
		return meta, fmt.Errorf("无法解析 ffprobe 输出: %q", output)
	}

	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return meta, fmt.Errorf("无法解析视频宽度 %q: %w", fields[0], err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return meta, fmt.Errorf("无法解析视频高度 %q: %w", fields[1], err)
	}
	if w <= 0 || h <= 0 {
		return meta, fmt.Errorf("视频尺寸无效: %dx%d", w, h)
	}
	meta.Width, meta.Height = w, h

	if len(fields) >= 3 {
		if d, err := strconv.ParseFloat(fields[2], 64); err == nil {
			meta.Duration = d
		}
	}
	return meta, nil
}
