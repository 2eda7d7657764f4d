//go:build !gocv

package service

import (
	"context"
	"image"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
)

// DNNSegmenter 的DNN后端需要启用 gocv 构建标签
type DNNSegmenter struct{}

func NewDNNSegmenter(_ *config.SegmentationConfig) (*DNNSegmenter, error) {
	return nil, model.NewSegmentationError("gocv build tag is not enabled", nil)
}

func (s *DNNSegmenter) Name() string {
	return "dnn"
}

func (s *DNNSegmenter) Segment(context.Context, *image.RGBA) (*ClassMask, error) {
	return nil, model.NewSegmentationError("gocv build tag is not enabled", nil)
}

func (s *DNNSegmenter) Close() {}
