package service

import (
	"math"
	"sort"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
)

// HotspotRegion 一个连通的热斑区域
type HotspotRegion struct {
	BoundingBox model.BBox
	AreaPx      int
	PeakTemp    float64
	MeanTemp    float64
	Component   uint8 // 多数归属的构件；无掩膜时为 ClassBackground
}

// HotspotClassStats 按构件汇总的热斑像素统计
type HotspotClassStats struct {
	Pixels   int
	MeanTemp float64
	PeakTemp float64
}

// HotspotResult 热斑检测结果。Mask 含全部超阈值像素（用于叠加图），
// Regions 只保留通过最小面积过滤的连通域
type HotspotResult struct {
	Percentile   float64
	Threshold    float64
	Mask         []bool
	Regions      []HotspotRegion
	StatsByClass map[uint8]HotspotClassStats
}

// HotspotDetector 按百分位阈值检测热斑
type HotspotDetector struct {
	minAreaPx  int
	maxRegions int
	floor      float64
	ceil       float64
}

func NewHotspotDetector(cfg *config.EngineConfig) *HotspotDetector {
	return &HotspotDetector{
		minAreaPx:  cfg.MinHotspotAreaPx,
		maxRegions: cfg.MaxHotspots,
		floor:      cfg.PercentileFloor,
		ceil:       cfg.PercentileCeil,
	}
}

// ClampPercentile 将请求百分位限制在允许窗口内
func (d *HotspotDetector) ClampPercentile(p float64) float64 {
	if p < d.floor {
		return d.floor
	}
	if p > d.ceil {
		return d.ceil
	}
	return p
}

// Detect 在外观前景上检测热斑。mask 为 nil 时全图参与，区域不做构件归属
func (d *HotspotDetector) Detect(thermal *GrayRaster, mask *ClassMask, percentile float64) *HotspotResult {
	res := &HotspotResult{
		Percentile:   percentile,
		Mask:         make([]bool, len(thermal.Values)),
		StatsByClass: make(map[uint8]HotspotClassStats),
	}

	inFacade := func(i int) bool {
		return mask == nil || mask.Labels[i] != ClassBackground
	}

	facadeVals := make([]float64, 0, len(thermal.Values))
	maxVal := math.Inf(-1)
	for i, v := range thermal.Values {
		if inFacade(i) {
			facadeVals = append(facadeVals, v)
			if v > maxVal {
				maxVal = v
			}
		}
	}
	if len(facadeVals) == 0 {
		return res
	}

	thr := Percentile(facadeVals, percentile)
	res.Threshold = thr

	// 阈值达到前景最大值说明没有突出的热异常（例如均匀图像）
	if thr >= maxVal {
		return res
	}

	for i, v := range thermal.Values {
		if inFacade(i) && v >= thr {
			res.Mask[i] = true
		}
	}

	res.Regions = d.connectedRegions(thermal, mask, res.Mask)

	sort.SliceStable(res.Regions, func(i, j int) bool {
		return res.Regions[i].AreaPx > res.Regions[j].AreaPx
	})
	if d.maxRegions > 0 && len(res.Regions) > d.maxRegions {
		res.Regions = res.Regions[:d.maxRegions]
	}

	d.accumulateStats(res)
	return res
}

// connectedRegions 8连通域提取，丢弃小于最小面积的区域
func (d *HotspotDetector) connectedRegions(thermal *GrayRaster, mask *ClassMask, hot []bool) []HotspotRegion {
	w, h := thermal.Width, thermal.Height
	visited := make([]bool, len(hot))
	var regions []HotspotRegion

	stack := make([]int, 0, 256)
	pixels := make([]int, 0, 1024)

	for start := range hot {
		if !hot[start] || visited[start] {
			continue
		}

		stack = stack[:0]
		pixels = pixels[:0]
		stack = append(stack, start)
		visited[start] = true

		minX, minY := w, h
		maxX, maxY := 0, 0
		peak := math.Inf(-1)
		sum := 0.0
		classCounts := [4]int{}

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pixels = append(pixels, idx)

			x, y := idx%w, idx/w
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
			v := thermal.Values[idx]
			sum += v
			if v > peak {
				peak = v
			}
			if mask != nil {
				classCounts[mask.Labels[idx]]++
			}

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n := ny*w + nx
					if hot[n] && !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}
		}

		if len(pixels) < d.minAreaPx {
			continue
		}

		regions = append(regions, HotspotRegion{
			BoundingBox: model.BBox{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1},
			AreaPx:      len(pixels),
			PeakTemp:    peak,
			MeanTemp:    sum / float64(len(pixels)),
			Component:   attributeRegion(mask, classCounts),
		})
	}

	return regions
}

// attributeRegion 多数像素归属；任何并列都判给墙体
func attributeRegion(mask *ClassMask, counts [4]int) uint8 {
	if mask == nil {
		return ClassBackground
	}

	best := ClassWall
	bestCount := -1
	tied := false
	for _, class := range []uint8{ClassWall, ClassWindow, ClassDoor} {
		c := counts[class]
		if c > bestCount {
			best, bestCount, tied = class, c, false
		} else if c == bestCount {
			tied = true
		}
	}
	if tied || bestCount <= 0 {
		return ClassWall
	}
	return best
}

// accumulateStats 入选区域按归属构件汇总像素数与温度统计
func (d *HotspotDetector) accumulateStats(res *HotspotResult) {
	type acc struct {
		px   int
		sum  float64
		peak float64
	}
	accs := make(map[uint8]*acc)

	for _, reg := range res.Regions {
		a := accs[reg.Component]
		if a == nil {
			a = &acc{peak: math.Inf(-1)}
			accs[reg.Component] = a
		}
		a.px += reg.AreaPx
		a.sum += reg.MeanTemp * float64(reg.AreaPx)
		if reg.PeakTemp > a.peak {
			a.peak = reg.PeakTemp
		}
	}

	for class, a := range accs {
		res.StatsByClass[class] = HotspotClassStats{
			Pixels:   a.px,
			MeanTemp: a.sum / float64(a.px),
			PeakTemp: a.peak,
		}
	}
}
