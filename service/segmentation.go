package service

import (
	"context"
	"fmt"
	"image"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
)

// Segmenter 外观分割模型。实现必须在初始化后支持并发只读调用
type Segmenter interface {
	// Segment 对RGB图像做外观分割，返回与图像同尺寸的类别掩膜
	Segment(ctx context.Context, rgb *image.RGBA) (*ClassMask, error)
	Name() string
}

// NewSegmenter 按配置构建分割后端
func NewSegmenter(cfg *config.SegmentationConfig) (Segmenter, error) {
	switch cfg.Backend {
	case "dnn":
		seg, err := NewDNNSegmenter(cfg)
		if err != nil {
			return nil, err
		}
		return seg, nil
	case "mock", "":
		return NewMockSegmenter(), nil
	default:
		return nil, model.NewSegmentationError(fmt.Sprintf("unknown segmentation backend: %s", cfg.Backend), nil)
	}
}

// MockSegmenter 固定几何的规则分割，用于无模型部署与测试
type MockSegmenter struct{}

func NewMockSegmenter() *MockSegmenter {
	return &MockSegmenter{}
}

func (s *MockSegmenter) Name() string {
	return "mock"
}

// Segment 全图视为墙体，中央放置半幅大小的窗户，底部居中放置门
func (s *MockSegmenter) Segment(_ context.Context, rgb *image.RGBA) (*ClassMask, error) {
	w := rgb.Bounds().Dx()
	h := rgb.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, model.NewSegmentationError("empty image", nil)
	}

	mask := NewClassMask(w, h)
	for i := range mask.Labels {
		mask.Labels[i] = ClassWall
	}

	cw, ch := w/2, h/2
	for y := max(ch-h/4, 0); y < min(ch+h/4, h); y++ {
		for x := max(cw-w/4, 0); x < min(cw+w/4, w); x++ {
			mask.Set(x, y, ClassWindow)
		}
	}
	for y := max(h-h/4, 0); y < h; y++ {
		for x := max(cw-w/8, 0); x < min(cw+w/8, w); x++ {
			mask.Set(x, y, ClassDoor)
		}
	}

	return mask, nil
}
