package service

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/utils"
	"go.uber.org/zap"
)

// AnalyzeRequest 一次分析的完整输入
type AnalyzeRequest struct {
	Fingerprint  string
	AnalysisID   string
	RGBImage     []byte
	ThermalImage []byte
	Inputs       *model.CalculationInputs
}

// AnalysisService 负责热损失分析流水线
type AnalysisService struct {
	cfg        *config.EngineConfig
	segmenter  Segmenter
	climate    *ClimateService
	hotspots   *HotspotDetector
	geometry   *GeometryResolver
	calculator *HeatLossCalculator
	reports    *ReportBuilder

	semaphore    chan struct{}
	queueTimeout time.Duration
}

func NewAnalysisService(cfg *config.EngineConfig, segmenter Segmenter, climate *ClimateService, materials *MaterialStore) *AnalysisService {
	return &AnalysisService{
		cfg:          cfg,
		segmenter:    segmenter,
		climate:      climate,
		hotspots:     NewHotspotDetector(cfg),
		geometry:     NewGeometryResolver(cfg),
		calculator:   NewHeatLossCalculator(cfg, materials),
		reports:      NewReportBuilder(cfg),
		semaphore:    make(chan struct{}, cfg.MaxConcurrent),
		queueTimeout: time.Duration(cfg.QueueTimeout) * time.Second,
	}
}

// Analyze 执行完整分析：解码对齐 → 分割与气候并行 → 热斑 → 面积 → 热损失 → 报告。
// 流水线内部不做重试，可恢复的降级全部记入报告 MethodNotes
func (s *AnalysisService) Analyze(ctx context.Context, req *AnalyzeRequest) (*model.Report, error) {
	// 并发控制
	waitCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-waitCtx.Done():
		return nil, model.NewQueueFull()
	}

	startTime := time.Now()
	in := req.Inputs

	rgb, err := decodeRGBA(req.RGBImage)
	if err != nil {
		return nil, model.NewInvalidInput("rgb_image: " + err.Error())
	}
	thermalSrc, err := decodeRGBA(req.ThermalImage)
	if err != nil {
		return nil, model.NewInvalidInput("thermal_image: " + err.Error())
	}

	rgb, _ = smartResizeRGBA(rgb, s.cfg.MaxImageSide)
	width := rgb.Bounds().Dx()
	height := rgb.Bounds().Dy()

	utils.Logger.Info("processing analysis",
		zap.String("analysis_id", req.AnalysisID),
		zap.String("city", in.City),
		zap.Int("width", width),
		zap.Int("height", height))

	// 热像对齐到RGB几何
	aligned, alignMethod := alignThermal(grayFromRGBA(thermalSrc), width, height)
	registration := model.Registration{Used: alignMethod != "none", Method: alignMethod}

	thermal := aligned
	calibrated := in.Calibrated()
	if calibrated {
		thermal = aligned.Calibrate(*in.ThermalMinC, *in.ThermalMaxC)
	}

	// 分割与气候查询并行，两者都完成后才进入面积解析
	type climateOutcome struct {
		res *ClimateResult
		err error
	}
	climateCh := make(chan climateOutcome, 1)
	go func() {
		res, cerr := s.climate.Resolve(ctx, in)
		climateCh <- climateOutcome{res, cerr}
	}()

	mask, segErr := s.segmenter.Segment(ctx, rgb)
	climateOut := <-climateCh

	var notes []string

	if segErr != nil {
		if !in.HasManualSplit() {
			return nil, model.NewSegmentationError("segmentation failed and no manual area split provided", segErr)
		}
		utils.Logger.Warn("segmentation failed, using manual area split",
			zap.String("analysis_id", req.AnalysisID), zap.Error(segErr))
		notes = append(notes, "segmentation failed: manual area split used")
		mask = nil
	}

	// 热斑检测
	percentile := s.cfg.DefaultPercentile
	if in.OverlayThresholdPercentile != nil {
		percentile = *in.OverlayThresholdPercentile
	}
	clamped := s.hotspots.ClampPercentile(percentile)
	if clamped != percentile {
		notes = append(notes, fmt.Sprintf("overlay_threshold_percentile %.1f outside [%.0f, %.0f], clamped to %.1f",
			percentile, s.cfg.PercentileFloor, s.cfg.PercentileCeil, clamped))
	}
	hs := s.hotspots.Detect(thermal, mask, clamped)

	// 面积解析
	var geo *GeometryResult
	if mask != nil {
		geo, err = s.geometry.FromMask(mask, *in.FacadeAreaM2, hs, in)
		if err != nil && in.HasManualSplit() {
			notes = append(notes, "segmentation produced no facade pixels: manual area split used")
			geo, err = s.geometry.FromManualSplit(in, *in.FacadeAreaM2)
		}
	} else {
		geo, err = s.geometry.FromManualSplit(in, *in.FacadeAreaM2)
	}
	if err != nil {
		return nil, err
	}
	notes = append(notes, geo.Notes...)

	// 气候数据不可用时降级为仅瞬时结果
	var climate *ClimateResult
	if climateOut.err != nil {
		utils.Logger.Warn("climate data unavailable, annual figures omitted",
			zap.String("analysis_id", req.AnalysisID), zap.Error(climateOut.err))
		notes = append(notes, "climate data unavailable: instantaneous results only")
	} else {
		climate = climateOut.res
	}

	// 热损失计算；未标定时阈值温度退化为室内温度
	calcThreshold := hs.Threshold
	if !calibrated {
		calcThreshold = *in.TInsideC
	}

	losses := make(map[uint8]ComponentLoss, len(geo.Components))
	for i := range geo.Components {
		cg := &geo.Components[i]
		losses[cg.Class] = s.calculator.Compute(cg,
			s.componentThermal(cg, mask, thermal, hs, calibrated, *in.TInsideC),
			in, climate, calcThreshold)
	}

	report := s.reports.Build(ReportArgs{
		Fingerprint:    req.Fingerprint,
		AnalysisID:     req.AnalysisID,
		Inputs:         in,
		Width:          width,
		Height:         height,
		Geometry:       geo,
		Losses:         losses,
		Hotspots:       hs,
		Climate:        climate,
		Percentile:     clamped,
		ThresholdTempC: hs.Threshold,
		Calibrated:     calibrated,
		Backend:        s.segmenter.Name(),
		Registration:   registration,
		Images:         s.renderImages(in, rgb, thermal, hs),
		Notes:          notes,
	})

	utils.Logger.Info("analysis completed",
		zap.String("analysis_id", req.AnalysisID),
		zap.Duration("duration", time.Since(startTime)),
		zap.Float64("annual_kwh_delta_t", report.Totals.AnnualKWhDeltaT),
		zap.Float64("annual_kwh_u_value", report.Totals.AnnualKWhUValue),
		zap.Int("hotspots", len(report.Hotspots)),
		zap.String("area_source", geo.AreaSource))

	return report, nil
}

// componentThermal 构件表面温度观测；未标定时统一退化为室内温度
func (s *AnalysisService) componentThermal(cg *ComponentGeometry, mask *ClassMask, thermal *GrayRaster, hs *HotspotResult, calibrated bool, tInside float64) ComponentThermal {
	th := ComponentThermal{
		MeanTempC:    tInside,
		HotspotMeanC: tInside,
		HotspotPeakC: tInside,
	}

	if stats, ok := hs.StatsByClass[cg.Class]; ok && stats.Pixels > 0 {
		th.HasHotspotObs = true
		if calibrated {
			th.HotspotMeanC = stats.MeanTemp
			th.HotspotPeakC = stats.PeakTemp
		}
	}

	if !calibrated || mask == nil || cg.PixelCount == 0 {
		return th
	}

	sum := 0.0
	for i, label := range mask.Labels {
		if label == cg.Class {
			sum += thermal.Values[i]
		}
	}
	th.MeanTempC = sum / float64(cg.PixelCount)
	return th
}

// renderImages 按请求开关渲染报告图像，全部默认开启
func (s *AnalysisService) renderImages(in *model.CalculationInputs, rgb *image.RGBA, thermal *GrayRaster, hs *HotspotResult) model.ReportImages {
	include := func(flag *bool) bool { return flag == nil || *flag }

	var images model.ReportImages
	if include(in.IncludeOverlay) {
		images.OverlayPNG = encodePNGBase64(renderOverlay(rgb, hs.Mask))
	}
	if include(in.IncludeBoxedRGB) {
		images.BoxedRGBPNG = encodePNGBase64(renderBoxes(rgb, hs.Regions))
	}
	if include(in.IncludeRGB) {
		images.RGBPNG = encodePNGBase64(rgb)
	}
	if include(in.IncludeThermal) {
		images.ThermalPNG = encodePNGBase64(grayToImage(thermal))
	}
	return images
}
