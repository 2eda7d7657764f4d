package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/utils"
	"go.uber.org/zap"
)

// encodePNGBase64 将图像编码为PNG的base64字符串
func encodePNGBase64(img image.Image) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		utils.Logger.Error("failed to encode png", zap.Error(err))
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// renderOverlay 热斑像素以半透明红色叠加到RGB图像
func renderOverlay(rgb *image.RGBA, hot []bool) *image.RGBA {
	out := cloneRGBA(rgb)
	w := rgb.Bounds().Dx()
	const alpha = 100

	for i, isHot := range hot {
		if !isHot {
			continue
		}
		off := out.PixOffset(i%w, i/w)
		out.Pix[off] = blendChannel(out.Pix[off], 255, alpha)
		out.Pix[off+1] = blendChannel(out.Pix[off+1], 0, alpha)
		out.Pix[off+2] = blendChannel(out.Pix[off+2], 0, alpha)
	}
	return out
}

func blendChannel(dst, src uint8, alpha int) uint8 {
	return uint8((int(dst)*(255-alpha) + int(src)*alpha) / 255)
}

// renderBoxes 在RGB图像上绘制热斑边界框，金色3像素线宽
func renderBoxes(rgb *image.RGBA, regions []HotspotRegion) *image.RGBA {
	out := cloneRGBA(rgb)
	gold := color.RGBA{R: 255, G: 215, B: 0, A: 255}
	for _, reg := range regions {
		drawRect(out, reg.BoundingBox, 3, gold)
	}
	return out
}

func drawRect(img *image.RGBA, box model.BBox, thickness int, c color.RGBA) {
	b := img.Bounds()
	set := func(px, py int) {
		if px < b.Min.X || py < b.Min.Y || px >= b.Max.X || py >= b.Max.Y {
			return
		}
		off := img.PixOffset(px, py)
		img.Pix[off] = c.R
		img.Pix[off+1] = c.G
		img.Pix[off+2] = c.B
		img.Pix[off+3] = 255
	}

	for t := 0; t < thickness; t++ {
		left, top := box.X-t, box.Y-t
		right, bottom := box.X+box.Width-1+t, box.Y+box.Height-1+t
		for px := left; px <= right; px++ {
			set(px, top)
			set(px, bottom)
		}
		for py := top; py <= bottom; py++ {
			set(left, py)
			set(right, py)
		}
	}
}

// grayToImage 浮点栅格按自身取值范围归一化为8位灰度图
func grayToImage(g *GrayRaster) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Width, g.Height))

	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range g.Values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	span := maxV - minV
	for i, v := range g.Values {
		if span <= 0 {
			out.Pix[i] = 128
			continue
		}
		out.Pix[i] = uint8((v-minV)/span*255 + 0.5)
	}
	return out
}
