package service

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
)

// decodeRGBA 解码PNG/JPEG并统一为RGBA
func decodeRGBA(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}

// smartResizeRGBA 限制最长边，返回缩放后的图像与比例
func smartResizeRGBA(src *image.RGBA, maxSide int) (*image.RGBA, float64) {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	maxDim := max(w, h)
	if maxDim <= maxSide {
		return src, 1.0
	}

	scale := float64(maxSide) / float64(maxDim)
	return resizeRGBA(src, int(float64(w)*scale), int(float64(h)*scale)), scale
}

// resizeRGBA 双线性缩放RGBA图像
func resizeRGBA(src *image.RGBA, width, height int) *image.RGBA {
	sw := src.Bounds().Dx()
	sh := src.Bounds().Dy()
	out := image.NewRGBA(image.Rect(0, 0, width, height))

	sx := float64(sw) / float64(width)
	sy := float64(sh) / float64(height)

	for y := 0; y < height; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := clampInt(int(fy), 0, sh-1)
		y1 := clampInt(y0+1, 0, sh-1)
		dy := fy - float64(y0)
		if dy < 0 {
			dy = 0
		}
		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0 := clampInt(int(fx), 0, sw-1)
			x1 := clampInt(x0+1, 0, sw-1)
			dx := fx - float64(x0)
			if dx < 0 {
				dx = 0
			}

			for ch := 0; ch < 4; ch++ {
				p00 := float64(src.Pix[src.PixOffset(x0, y0)+ch])
				p10 := float64(src.Pix[src.PixOffset(x1, y0)+ch])
				p01 := float64(src.Pix[src.PixOffset(x0, y1)+ch])
				p11 := float64(src.Pix[src.PixOffset(x1, y1)+ch])
				top := p00*(1-dx) + p10*dx
				bot := p01*(1-dx) + p11*dx
				out.Pix[out.PixOffset(x, y)+ch] = uint8(top*(1-dy) + bot*dy + 0.5)
			}
		}
	}
	return out
}

// grayFromRGBA Rec.601 亮度
func grayFromRGBA(img *image.RGBA) *GrayRaster {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := NewGrayRaster(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(x, y)
			r := float64(img.Pix[off])
			g := float64(img.Pix[off+1])
			b := float64(img.Pix[off+2])
			out.Set(x, y, 0.299*r+0.587*g+0.114*b)
		}
	}
	return out
}

// alignThermal 将热像栅格对齐到RGB几何（双线性缩放）
func alignThermal(thermal *GrayRaster, width, height int) (*GrayRaster, string) {
	if thermal.Width == width && thermal.Height == height {
		return thermal, "none"
	}
	return thermal.Resize(width, height), "resize_only"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
