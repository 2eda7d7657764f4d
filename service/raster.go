package service

import (
	"math"
	"sort"
)

// 构件类别，分割后端的模型类别索引统一折算到这四类
const (
	ClassBackground uint8 = iota
	ClassWall
	ClassWindow
	ClassDoor
)

// ClassLabel 类别到构件标签
func ClassLabel(c uint8) string {
	switch c {
	case ClassWall:
		return "wall"
	case ClassWindow:
		return "window"
	case ClassDoor:
		return "door"
	}
	return "background"
}

// GrayRaster 单通道浮点栅格，行主序。值为灰度[0,255]或标定后的摄氏温度
type GrayRaster struct {
	Width  int
	Height int
	Values []float64
}

func NewGrayRaster(width, height int) *GrayRaster {
	return &GrayRaster{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}
}

func (r *GrayRaster) At(x, y int) float64 {
	return r.Values[y*r.Width+x]
}

func (r *GrayRaster) Set(x, y int, v float64) {
	r.Values[y*r.Width+x] = v
}

// Resize 双线性缩放到目标尺寸
func (r *GrayRaster) Resize(width, height int) *GrayRaster {
	if width == r.Width && height == r.Height {
		out := NewGrayRaster(width, height)
		copy(out.Values, r.Values)
		return out
	}

	out := NewGrayRaster(width, height)
	sx := float64(r.Width) / float64(width)
	sy := float64(r.Height) / float64(height)

	for y := 0; y < height; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := int(math.Floor(fy))
		dy := fy - float64(y0)
		y1 := y0 + 1
		if y0 < 0 {
			y0, y1, dy = 0, 0, 0
		}
		if y1 >= r.Height {
			y1 = r.Height - 1
			if y0 > y1 {
				y0 = y1
			}
		}
		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0 := int(math.Floor(fx))
			dx := fx - float64(x0)
			x1 := x0 + 1
			if x0 < 0 {
				x0, x1, dx = 0, 0, 0
			}
			if x1 >= r.Width {
				x1 = r.Width - 1
				if x0 > x1 {
					x0 = x1
				}
			}

			top := r.At(x0, y0)*(1-dx) + r.At(x1, y0)*dx
			bot := r.At(x0, y1)*(1-dx) + r.At(x1, y1)*dx
			out.Set(x, y, top*(1-dy)+bot*dy)
		}
	}
	return out
}

// Calibrate 将灰度[0,255]线性映射到[minC,maxC]摄氏度
func (r *GrayRaster) Calibrate(minC, maxC float64) *GrayRaster {
	out := NewGrayRaster(r.Width, r.Height)
	span := maxC - minC
	for i, v := range r.Values {
		out.Values[i] = minC + v/255.0*span
	}
	return out
}

// MaxValue 栅格最大值
func (r *GrayRaster) MaxValue() float64 {
	m := math.Inf(-1)
	for _, v := range r.Values {
		if v > m {
			m = v
		}
	}
	return m
}

// ClassMask 构件类别掩膜，与对应图像同尺寸
type ClassMask struct {
	Width  int
	Height int
	Labels []uint8
}

func NewClassMask(width, height int) *ClassMask {
	return &ClassMask{
		Width:  width,
		Height: height,
		Labels: make([]uint8, width*height),
	}
}

func (m *ClassMask) At(x, y int) uint8 {
	return m.Labels[y*m.Width+x]
}

func (m *ClassMask) Set(x, y int, c uint8) {
	m.Labels[y*m.Width+x] = c
}

// Resize 最近邻缩放，类别值不可插值
func (m *ClassMask) Resize(width, height int) *ClassMask {
	if width == m.Width && height == m.Height {
		out := NewClassMask(width, height)
		copy(out.Labels, m.Labels)
		return out
	}

	out := NewClassMask(width, height)
	for y := 0; y < height; y++ {
		sy := y * m.Height / height
		for x := 0; x < width; x++ {
			sx := x * m.Width / width
			out.Set(x, y, m.At(sx, sy))
		}
	}
	return out
}

// Count 指定类别的像素数
func (m *ClassMask) Count(class uint8) int {
	n := 0
	for _, c := range m.Labels {
		if c == class {
			n++
		}
	}
	return n
}

// ForegroundCount 外观前景像素数（非背景）
func (m *ClassMask) ForegroundCount() int {
	n := 0
	for _, c := range m.Labels {
		if c != ClassBackground {
			n++
		}
	}
	return n
}

// Percentile 线性插值百分位数
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
