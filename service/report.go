package service

import (
	"fmt"
	"math"
	"time"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
)

var displayLabels = map[string]string{
	"wall":   "Opaque wall",
	"window": "Openings/windows",
	"door":   "Door",
}

// 多年成本速查表的固定期限
var costHorizons = []int{1, 5, 10, 20, 30}

const reportDisclaimer = "Screening-level estimate derived from a single thermal image. Not a substitute for an on-site energy audit."

// ReportBuilder 组装最终报告
type ReportBuilder struct {
	emissionFactor float64
	pvYears        int
	k              float64
}

func NewReportBuilder(cfg *config.EngineConfig) *ReportBuilder {
	return &ReportBuilder{
		emissionFactor: cfg.EmissionFactorKgPerKWh,
		pvYears:        cfg.PresentValueYears,
		k:              cfg.ProxyCoefficient,
	}
}

// ReportArgs 报告装配输入
type ReportArgs struct {
	Fingerprint string
	AnalysisID  string
	Inputs      *model.CalculationInputs
	Width       int
	Height      int

	Geometry *GeometryResult
	Losses   map[uint8]ComponentLoss
	Hotspots *HotspotResult
	Climate  *ClimateResult // nil 表示气候数据不可用，年化结果留空

	Percentile     float64
	ThresholdTempC float64
	Calibrated     bool
	Backend        string
	Registration   model.Registration
	Images         model.ReportImages
	Notes          []string
}

// Build 汇总构件结果、核心结论与元信息。报告构建后不再修改
func (b *ReportBuilder) Build(args ReportArgs) *model.Report {
	in := args.Inputs
	price := *in.FuelPriceEurPerKWh

	emission := b.emissionFactor
	if in.EmissionFactorKgPerKWh != nil {
		emission = *in.EmissionFactorKgPerKWh
	}

	var comps []model.ComponentResult
	var totals model.Totals

	for i := range args.Geometry.Components {
		cg := &args.Geometry.Components[i]
		loss := args.Losses[cg.Class]

		res := model.ComponentResult{
			Label:                cg.Label,
			DisplayLabel:         displayLabels[cg.Label],
			PixelCount:           cg.PixelCount,
			AreaM2:               cg.AreaM2,
			MeanTempC:            loss.MeanTempC,
			HotspotAreaM2:        cg.HotspotAreaM2,
			HotspotSource:        cg.HotspotSource,
			InstantaneousW:       loss.InstantaneousW,
			InstantaneousWUValue: loss.InstantaneousWUValue,
			AnnualKWhDeltaT:      loss.AnnualKWhDeltaT,
			AnnualKWhUValue:      loss.AnnualKWhUValue,
			AnnualKWhSavedUValue: loss.AnnualKWhSavedUValue,
			UCurrent:             loss.UCurrent,
			UImproved:            loss.UImproved,
			CostEurDeltaT:        loss.AnnualKWhDeltaT * price,
			CostEurUValue:        loss.AnnualKWhUValue * price,
			CO2Kg:                loss.AnnualKWhDeltaT * emission,
		}

		totals.InstantaneousW += res.InstantaneousW
		totals.InstantaneousWUValue += res.InstantaneousWUValue
		totals.AnnualKWhDeltaT += res.AnnualKWhDeltaT
		totals.AnnualKWhUValue += res.AnnualKWhUValue
		totals.AnnualKWhSavedUValue += res.AnnualKWhSavedUValue
		totals.CostEurDeltaT += res.CostEurDeltaT
		totals.CostEurUValue += res.CostEurUValue
		totals.CO2Kg += res.CO2Kg

		comps = append(comps, res)
	}

	if totals.AnnualKWhDeltaT != 0 {
		for i := range comps {
			comps[i].SharePct = comps[i].AnnualKWhDeltaT / totals.AnnualKWhDeltaT * 100
		}
	}

	years := b.pvYears
	if in.PresentValueYears != nil {
		years = *in.PresentValueYears
	}
	discount := 0.03
	if in.DiscountRate != nil {
		discount = *in.DiscountRate
	}
	inflation := 0.03
	if in.InflationRate != nil {
		inflation = *in.InflationRate
	}

	annualCost := totals.CostEurDeltaT

	headline := model.Headline{
		EstimatedAnnualHeatLossKWh: totals.AnnualKWhDeltaT,
		EstimatedAnnualCostEur:     annualCost,
		EstimatedCO2Kg:             totals.CO2Kg,
		PresentValueEur:            presentValue(annualCost, years, discount, inflation),
		PresentValueYears:          years,
		Confidence:                 b.confidence(args),
		KeyDriver:                  keyDriver(comps),
	}

	multiYear := make(map[int]float64, len(costHorizons))
	for _, n := range costHorizons {
		multiYear[n] = annuityPV(annualCost, n, discount)
	}

	return &model.Report{
		Fingerprint:   args.Fingerprint,
		Width:         args.Width,
		Height:        args.Height,
		Headline:      headline,
		Components:    comps,
		Totals:        totals,
		Hotspots:      b.buildHotspots(args),
		MultiYearCost: multiYear,
		Images:        args.Images,
		Meta:          b.buildMeta(args, emission, discount, inflation),
		Timestamp:     time.Now().Unix(),
	}
}

// presentValue 年成本按通胀逐年上涨，再按折现率贴现求和
func presentValue(annualCost float64, years int, discount, inflation float64) float64 {
	pv := 0.0
	cost := annualCost
	for t := 1; t <= years; t++ {
		pv += cost / math.Pow(1+discount, float64(t))
		cost *= 1 + inflation
	}
	return pv
}

// annuityPV 不计通胀的年金现值，用于多年成本速查表
func annuityPV(annualCost float64, years int, discount float64) float64 {
	if discount <= 0 {
		return annualCost * float64(years)
	}
	return annualCost * (1 - math.Pow(1+discount, -float64(years))) / discount
}

// keyDriver ΔT代理法年损失最大的构件
func keyDriver(comps []model.ComponentResult) string {
	if len(comps) == 0 {
		return ""
	}
	best := 0
	for i := 1; i < len(comps); i++ {
		if comps[i].AnnualKWhDeltaT > comps[best].AnnualKWhDeltaT {
			best = i
		}
	}
	return fmt.Sprintf("Most estimated losses attributed to %s.", comps[best].DisplayLabel)
}

// confidence 粗粒度置信度：分割成功、气候数据来自表或API、热像已标定
// 全部满足为 Medium，否则 Low
func (b *ReportBuilder) confidence(args ReportArgs) string {
	score := 1 // 外观面积为必填项
	if args.Geometry.AreaSource == "segmentation" {
		score++
	}
	if args.Climate != nil && (args.Climate.Source == "table" || args.Climate.Source == "api") {
		score++
	}
	if args.Calibrated {
		score++
	}
	if score >= 4 {
		return "Medium"
	}
	return "Low"
}

// buildHotspots 区域转报告热斑，严重度按占所属构件的像素比例分档
func (b *ReportBuilder) buildHotspots(args ReportArgs) []model.Hotspot {
	if args.Hotspots == nil {
		return nil
	}

	totalPx := args.Width * args.Height
	var out []model.Hotspot
	for _, reg := range args.Hotspots.Regions {
		label := ""
		refPx := totalPx
		if reg.Component != ClassBackground {
			label = ClassLabel(reg.Component)
			if cg := args.Geometry.Component(reg.Component); cg != nil && cg.PixelCount > 0 {
				refPx = cg.PixelCount
			}
		}

		ratio := 0.0
		if refPx > 0 {
			ratio = float64(reg.AreaPx) / float64(refPx)
		}

		out = append(out, model.Hotspot{
			BoundingBox: reg.BoundingBox,
			AreaPx:      reg.AreaPx,
			PeakTempC:   reg.PeakTemp,
			MeanTempC:   reg.MeanTemp,
			Component:   label,
			Severity:    severityFor(ratio),
		})
	}
	return out
}

func severityFor(ratio float64) string {
	switch {
	case ratio >= 0.07:
		return "high"
	case ratio >= 0.03:
		return "medium"
	default:
		return "low"
	}
}

// buildFindings 按构件汇总热斑集中度
func (b *ReportBuilder) buildFindings(args ReportArgs) []string {
	if args.Hotspots == nil {
		return nil
	}

	var findings []string
	for _, class := range componentOrder {
		stats, ok := args.Hotspots.StatsByClass[class]
		if !ok || stats.Pixels == 0 {
			continue
		}
		cg := args.Geometry.Component(class)
		if cg == nil || cg.PixelCount == 0 {
			continue
		}

		ratio := float64(stats.Pixels) / float64(cg.PixelCount)
		pct := ratio * 100
		label := displayLabels[ClassLabel(class)]
		switch {
		case ratio >= 0.07:
			findings = append(findings, fmt.Sprintf("Thermal anomalies are concentrated on the %s (%.1f%% of its surface).", label, pct))
		case ratio >= 0.03:
			findings = append(findings, fmt.Sprintf("Moderate thermal anomalies on the %s (%.1f%% of its surface).", label, pct))
		default:
			findings = append(findings, fmt.Sprintf("Minor thermal anomalies on the %s (%.1f%% of its surface).", label, pct))
		}
	}
	return findings
}

func (b *ReportBuilder) buildMeta(args ReportArgs, emission, discount, inflation float64) model.ReportMeta {
	in := args.Inputs

	meta := model.ReportMeta{
		AnalysisID:          args.AnalysisID,
		City:                in.City,
		Country:             in.Country,
		CreatedAt:           time.Now().UTC().Format(time.RFC3339),
		BaseTempC:           *in.HeatingBaseTempC,
		TInsideC:            *in.TInsideC,
		TOutsideC:           *in.TOutsideC,
		Percentile:          args.Percentile,
		ThresholdTempC:      args.ThresholdTempC,
		ThermalCalibrated:   args.Calibrated,
		AreaSource:          args.Geometry.AreaSource,
		SegmentationBackend: args.Backend,
		Registration:        args.Registration,
		MethodNotes:         args.Notes,
		Findings:            b.buildFindings(args),
		Disclaimer:          reportDisclaimer,
	}

	if args.Climate != nil {
		meta.DegreeHours = args.Climate.DegreeHours
		meta.HDD = args.Climate.HDD
		meta.DegreeHoursSource = args.Climate.Source
	} else {
		meta.DegreeHoursSource = "unavailable"
	}

	meta.Assumptions = []string{
		fmt.Sprintf("Fuel price %.3f EUR/kWh.", *in.FuelPriceEurPerKWh),
		fmt.Sprintf("Heating base temperature %.1f °C.", *in.HeatingBaseTempC),
		fmt.Sprintf("Indoor %.1f °C, outdoor %.1f °C at capture time.", *in.TInsideC, *in.TOutsideC),
		fmt.Sprintf("Emission factor %.2f kgCO2e/kWh.", emission),
		fmt.Sprintf("Discount rate %.1f%%, cost inflation %.1f%%.", discount*100, inflation*100),
		fmt.Sprintf("Proxy coefficient %.2f W/(m²·K); U-values from request overrides or material presets.", b.k),
	}
	if !args.Calibrated {
		meta.Assumptions = append(meta.Assumptions,
			"Thermal image is uncalibrated: hotspot temperature fields carry 8-bit gray levels and component surface temperature falls back to the indoor temperature.")
	}
	meta.Assumptions = append(meta.Assumptions,
		"Multi-year cost table is an annuity present value without cost inflation.")

	return meta
}
