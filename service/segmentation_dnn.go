//go:build gocv

package service

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DNNSegmenter 基于ONNX语义分割模型的外观分割。
// 模型在构建时加载一次；Forward 不可重入，推理段加锁
type DNNSegmenter struct {
	mu          sync.Mutex
	net         gocv.Net
	inputSize   int
	wallClass   int
	doorClass   int
	windowClass int
}

// NewDNNSegmenter 加载分割模型，由 main 在启动时调用一次
func NewDNNSegmenter(cfg *config.SegmentationConfig) (*DNNSegmenter, error) {
	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, model.NewSegmentationError(fmt.Sprintf("failed to load model: %s", cfg.ModelPath), nil)
	}

	utils.Logger.Info("segmentation model loaded",
		zap.String("model", cfg.ModelPath),
		zap.Int("input_size", cfg.InputSize))

	return &DNNSegmenter{
		net:         net,
		inputSize:   cfg.InputSize,
		wallClass:   cfg.WallClass,
		doorClass:   cfg.DoorClass,
		windowClass: cfg.WindowClass,
	}, nil
}

func (s *DNNSegmenter) Name() string {
	return "dnn"
}

// Segment 前向推理后逐像素取类别argmax，掩膜还原到输入图像尺寸
func (s *DNNSegmenter) Segment(ctx context.Context, rgb *image.RGBA) (*ClassMask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := gocv.ImageToMatRGBA(rgb)
	if err != nil {
		return nil, model.NewSegmentationError("failed to convert image", err)
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR)

	// 模型导出时已融合归一化，这里只做缩放
	blob := gocv.BlobFromImage(bgr, 1.0/255.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	prob := s.net.Forward("")
	s.mu.Unlock()
	defer prob.Close()

	sizes := prob.Size()
	if len(sizes) != 4 {
		return nil, model.NewSegmentationError(fmt.Sprintf("unexpected model output rank: %d", len(sizes)), nil)
	}
	classes, outH, outW := sizes[1], sizes[2], sizes[3]

	data, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, model.NewSegmentationError("failed to read model output", err)
	}

	mask := NewClassMask(outW, outH)
	plane := outH * outW
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			best := 0
			bestScore := data[y*outW+x]
			for c := 1; c < classes; c++ {
				if score := data[c*plane+y*outW+x]; score > bestScore {
					best, bestScore = c, score
				}
			}
			mask.Set(x, y, s.foldClass(best))
		}
	}

	return mask.Resize(rgb.Bounds().Dx(), rgb.Bounds().Dy()), nil
}

// foldClass 模型类别折算：墙/窗/门保留，0为背景，其余并入墙体
func (s *DNNSegmenter) foldClass(c int) uint8 {
	switch c {
	case 0:
		return ClassBackground
	case s.wallClass:
		return ClassWall
	case s.windowClass:
		return ClassWindow
	case s.doorClass:
		return ClassDoor
	}
	return ClassWall
}

func (s *DNNSegmenter) Close() {
	s.net.Close()
}
