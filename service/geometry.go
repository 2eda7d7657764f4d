package service

import (
	"fmt"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/utils"
	"go.uber.org/zap"
)

// ComponentGeometry 单个构件的面积解析结果
type ComponentGeometry struct {
	Class         uint8
	Label         string
	PixelCount    int
	AreaM2        float64
	HotspotPx     int
	HotspotAreaM2 float64
	HotspotSource string // detected, override
}

// GeometryResult 全部构件的面积解析
type GeometryResult struct {
	Components   []ComponentGeometry // 固定顺序：wall, window, door
	AreaSource   string              // segmentation, manual_split
	ForegroundPx int
	Notes        []string
}

// Component 按类别取构件，不存在返回 nil
func (g *GeometryResult) Component(class uint8) *ComponentGeometry {
	for i := range g.Components {
		if g.Components[i].Class == class {
			return &g.Components[i]
		}
	}
	return nil
}

// GeometryResolver 将像素占比换算为实际面积，并维持面积预算约束
type GeometryResolver struct {
	tolerance float64
}

func NewGeometryResolver(cfg *config.EngineConfig) *GeometryResolver {
	return &GeometryResolver{tolerance: cfg.AreaTolerance}
}

var componentOrder = []uint8{ClassWall, ClassWindow, ClassDoor}

// FromMask 由分割掩膜解析构件面积。
// 构件面积 = 外观总面积 × 构件像素 / 前景像素
func (r *GeometryResolver) FromMask(mask *ClassMask, facadeArea float64, hs *HotspotResult, in *model.CalculationInputs) (*GeometryResult, error) {
	fg := mask.ForegroundCount()
	if fg == 0 {
		return nil, model.NewSegmentationError("segmentation produced no facade pixels", nil)
	}

	res := &GeometryResult{
		AreaSource:   "segmentation",
		ForegroundPx: fg,
	}

	for _, class := range componentOrder {
		count := mask.Count(class)
		comp := ComponentGeometry{
			Class:      class,
			Label:      ClassLabel(class),
			PixelCount: count,
			AreaM2:     facadeArea * float64(count) / float64(fg),
		}
		if hs != nil {
			if stats, ok := hs.StatsByClass[class]; ok && count > 0 {
				comp.HotspotPx = stats.Pixels
				comp.HotspotAreaM2 = comp.AreaM2 * float64(stats.Pixels) / float64(count)
				comp.HotspotSource = "detected"
			}
		}
		res.Components = append(res.Components, comp)
	}

	r.applyHotspotOverride(res, in)
	r.enforceAreaBudget(res, facadeArea)
	return res, nil
}

// FromManualSplit 分割失败时使用调用方提供的面积拆分，
// 未覆盖的剩余面积归入墙体
func (r *GeometryResolver) FromManualSplit(in *model.CalculationInputs, facadeArea float64) (*GeometryResult, error) {
	res := &GeometryResult{AreaSource: "manual_split"}

	sum := 0.0
	for _, class := range componentOrder {
		area := in.ManualAreaM2(ClassLabel(class))
		sum += area
		res.Components = append(res.Components, ComponentGeometry{
			Class:  class,
			Label:  ClassLabel(class),
			AreaM2: area,
		})
	}

	if sum < facadeArea {
		wall := res.Component(ClassWall)
		wall.AreaM2 += facadeArea - sum
	}

	r.applyHotspotOverride(res, in)
	r.enforceAreaBudget(res, facadeArea)
	return res, nil
}

// applyHotspotOverride 调用方提供的热斑面积作用于墙体，替换像素推导值
func (r *GeometryResolver) applyHotspotOverride(res *GeometryResult, in *model.CalculationInputs) {
	if in == nil || in.HotspotAreaM2 == nil {
		return
	}
	wall := res.Component(ClassWall)
	if wall == nil {
		return
	}

	v := *in.HotspotAreaM2
	if v > wall.AreaM2 {
		res.Notes = append(res.Notes, fmt.Sprintf("hotspot_area_m2 %.2f exceeds wall area %.2f, clamped", v, wall.AreaM2))
		v = wall.AreaM2
	}
	wall.HotspotAreaM2 = v
	wall.HotspotSource = "override"
}

// enforceAreaBudget 构件面积之和不得超过外观总面积（容差内），超出则等比收缩
func (r *GeometryResolver) enforceAreaBudget(res *GeometryResult, facadeArea float64) {
	sum := 0.0
	for i := range res.Components {
		sum += res.Components[i].AreaM2
	}
	if sum <= facadeArea*(1+r.tolerance) {
		return
	}

	inconsistency := model.NewGeometryInconsistency(
		fmt.Sprintf("component areas %.2f m2 exceeded facade area %.2f m2", sum, facadeArea))
	utils.Logger.Warn("renormalizing component areas",
		zap.Float64("sum_m2", sum),
		zap.Float64("facade_m2", facadeArea),
		zap.Error(inconsistency))

	scale := facadeArea / sum
	for i := range res.Components {
		res.Components[i].AreaM2 *= scale
		res.Components[i].HotspotAreaM2 *= scale
	}
	res.Notes = append(res.Notes,
		fmt.Sprintf("component areas %.2f m2 exceeded facade area %.2f m2, renormalized", sum, facadeArea))
}
