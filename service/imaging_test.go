package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// makePNG 生成纯色PNG，供解码路径测试
func makePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeRGBA(t *testing.T) {
	data := makePNG(t, 8, 6, color.RGBA{R: 100, G: 150, B: 200, A: 255})

	img, err := decodeRGBA(data)
	require.NoError(t, err)
	require.Equal(t, 8, img.Bounds().Dx())
	require.Equal(t, 6, img.Bounds().Dy())
}

func TestDecodeRGBAEmpty(t *testing.T) {
	_, err := decodeRGBA(nil)
	require.Error(t, err)
}

func TestDecodeRGBAGarbage(t *testing.T) {
	_, err := decodeRGBA([]byte("not an image"))
	require.Error(t, err)
}

func TestSmartResizeRGBA(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	out, scale := smartResizeRGBA(small, 200)
	require.Same(t, small, out)
	require.Equal(t, 1.0, scale)

	big := image.NewRGBA(image.Rect(0, 0, 400, 200))
	out, scale = smartResizeRGBA(big, 200)
	require.Equal(t, 200, out.Bounds().Dx())
	require.Equal(t, 100, out.Bounds().Dy())
	require.InDelta(t, 0.5, scale, 1e-9)
}

func TestGrayFromRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	g := grayFromRGBA(img)
	require.InDelta(t, 255.0, g.At(0, 0), 1e-6)
}

func TestAlignThermal(t *testing.T) {
	r := NewGrayRaster(4, 4)
	same, method := alignThermal(r, 4, 4)
	require.Same(t, r, same)
	require.Equal(t, "none", method)

	scaled, method := alignThermal(r, 8, 8)
	require.Equal(t, "resize_only", method)
	require.Equal(t, 8, scaled.Width)
	require.Equal(t, 8, scaled.Height)
}
