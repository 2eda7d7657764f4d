package service

import (
	"context"
	"image"
	"testing"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/stretchr/testify/require"
)

func TestMockSegmenterDeterministic(t *testing.T) {
	seg := NewMockSegmenter()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))

	a, err := seg.Segment(context.Background(), img)
	require.NoError(t, err)
	b, err := seg.Segment(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, a.Labels, b.Labels)
}

func TestMockSegmenterPartitionsImage(t *testing.T) {
	seg := NewMockSegmenter()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))

	mask, err := seg.Segment(context.Background(), img)
	require.NoError(t, err)

	total := mask.Count(ClassBackground) + mask.Count(ClassWall) +
		mask.Count(ClassWindow) + mask.Count(ClassDoor)
	require.Equal(t, 64*64, total)
	require.Greater(t, mask.Count(ClassWall), 0)
	require.Greater(t, mask.Count(ClassWindow), 0)
	require.Greater(t, mask.Count(ClassDoor), 0)
}

func TestNewSegmenterBackends(t *testing.T) {
	seg, err := NewSegmenter(&config.SegmentationConfig{Backend: "mock"})
	require.NoError(t, err)
	require.Equal(t, "mock", seg.Name())

	seg, err = NewSegmenter(&config.SegmentationConfig{Backend: ""})
	require.NoError(t, err)
	require.Equal(t, "mock", seg.Name())

	_, err = NewSegmenter(&config.SegmentationConfig{Backend: "bogus"})
	require.Error(t, err)
	require.True(t, model.IsCode(err, model.ErrSegmentation))
}
