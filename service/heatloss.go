package service

import (
	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
)

// ComponentLoss 单个构件两种方法的热损失结果
type ComponentLoss struct {
	MeanTempC            float64
	InstantaneousW       float64 // ΔT代理法
	InstantaneousWUValue float64 // U值法
	AnnualKWhDeltaT      float64
	AnnualKWhUValue      float64
	AnnualKWhSavedUValue float64
	UCurrent             float64
	UImproved            float64
}

// ComponentThermal 构件的温度观测，未标定时由上层统一换成室内温度
type ComponentThermal struct {
	MeanTempC     float64
	HotspotMeanC  float64
	HotspotPeakC  float64
	HasHotspotObs bool
}

// HeatLossCalculator 两种方法独立计算、互不合并：
// ΔT代理法 P = k·面积·(表面温度−室外温度)，U值法 P = U·面积·(室内−室外)
type HeatLossCalculator struct {
	k              float64
	representative string
	materials      *MaterialStore
}

func NewHeatLossCalculator(cfg *config.EngineConfig, materials *MaterialStore) *HeatLossCalculator {
	return &HeatLossCalculator{
		k:              cfg.ProxyCoefficient,
		representative: cfg.RepresentativeTemp,
		materials:      materials,
	}
}

// Compute 计算单个构件。climate 为 nil 时只给瞬时结果，年化保持为零。
// thresholdTempC 在热斑面积来自覆盖值且无像素观测时充当热斑温度
func (c *HeatLossCalculator) Compute(comp *ComponentGeometry, th ComponentThermal, in *model.CalculationInputs, climate *ClimateResult, thresholdTempC float64) ComponentLoss {
	tIn := *in.TInsideC
	tOut := *in.TOutsideC

	rep := th.MeanTempC
	if c.representative == "hotspot_peak" && th.HasHotspotObs {
		rep = th.HotspotPeakC
	}

	hsArea := comp.HotspotAreaM2
	if hsArea > comp.AreaM2 {
		hsArea = comp.AreaM2
	}
	baseArea := comp.AreaM2 - hsArea

	hsTemp := th.HotspotMeanC
	if !th.HasHotspotObs {
		hsTemp = thresholdTempC
	}

	// 负温差原样传播，不做下限截断
	pA := c.k * (baseArea*(rep-tOut) + hsArea*(hsTemp-tOut))

	loss := ComponentLoss{
		MeanTempC:      th.MeanTempC,
		InstantaneousW: pA,
	}

	// 年化：把瞬时功率折算到单位温差，再乘以全年度时
	if climate != nil {
		if dtCapture := tIn - tOut; dtCapture > 0 {
			loss.AnnualKWhDeltaT = pA / dtCapture * climate.DegreeHours / 1000
		}
	}

	u := c.resolveU(comp.Label, in, false)
	uImp := c.resolveU(comp.Label, in, true)
	loss.UCurrent = u
	loss.UImproved = uImp
	loss.InstantaneousWUValue = u * comp.AreaM2 * (tIn - tOut)
	if climate != nil {
		loss.AnnualKWhUValue = u * comp.AreaM2 * climate.HDD * 24 / 1000
		if du := u - uImp; du > 0 {
			loss.AnnualKWhSavedUValue = du * comp.AreaM2 * climate.HDD * 24 / 1000
		}
	}

	return loss
}

// resolveU U值来源：请求覆盖 → 请求材料名 → 构件默认材料
func (c *HeatLossCalculator) resolveU(component string, in *model.CalculationInputs, improved bool) float64 {
	if improved {
		if v := in.UValueImprovedOverride(component); v != nil {
			return *v
		}
	} else {
		if v := in.UValueOverride(component); v != nil {
			return *v
		}
	}

	material := in.MaterialOverride(component, improved)
	if material == "" {
		material = c.materials.DefaultMaterial(component, improved)
	}
	return c.materials.UValue(material)
}
