package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/stretchr/testify/require"
)

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		MaxConcurrent:          2,
		QueueTimeout:           5,
		MaxImageSide:           256,
		ProxyCoefficient:       1.0,
		DefaultPercentile:      95.0,
		PercentileFloor:        80.0,
		PercentileCeil:         98.0,
		MinHotspotAreaPx:       50,
		MaxHotspots:            20,
		RepresentativeTemp:     "mean",
		EmissionFactorKgPerKWh: 0.20,
		PresentValueYears:      15,
		AreaTolerance:          0.01,
	}
}

func newTestService(seg Segmenter) *AnalysisService {
	climate := newOfflineClimate()
	materials := NewMaterialStore(&config.MaterialsConfig{DataFile: "testdata/does-not-exist.yaml"})
	return NewAnalysisService(testEngineConfig(), seg, climate, materials)
}

// grayPNG 生成指定灰度的纯色PNG
func grayPNG(t *testing.T, w, h int, v uint8) []byte {
	t.Helper()
	return makePNG(t, w, h, color.RGBA{R: v, G: v, B: v, A: 255})
}

// thermalPNG 基底灰度之上叠加若干灰度块
func thermalPNG(t *testing.T, w, h int, base uint8, blocks []struct {
	x, y, w, h int
	v          uint8
}) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: base, G: base, B: base, A: 255})
		}
	}
	for _, b := range blocks {
		for y := b.y; y < b.y+b.h; y++ {
			for x := b.x; x < b.x+b.w; x++ {
				img.SetRGBA(x, y, color.RGBA{R: b.v, G: b.v, B: b.v, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uniformInputs() *model.CalculationInputs {
	no := false
	return &model.CalculationInputs{
		City:               "Salamanca",
		Country:            "Spain",
		FacadeAreaM2:       fptr(100),
		FuelPriceEurPerKWh: fptr(0.25),
		HeatingBaseTempC:   fptr(13),
		TInsideC:           fptr(22),
		TOutsideC:          fptr(5),
		// 灰度0映射到15°C，均匀图像处处15°C
		ThermalMinC:     fptr(15),
		ThermalMaxC:     fptr(16),
		IncludeOverlay:  &no,
		IncludeBoxedRGB: &no,
	}
}

func uniformRequest(t *testing.T, in *model.CalculationInputs) *AnalyzeRequest {
	t.Helper()
	return &AnalyzeRequest{
		Fingerprint:  "fp-test",
		AnalysisID:   "0123456789",
		RGBImage:     grayPNG(t, 64, 64, 128),
		ThermalImage: grayPNG(t, 64, 64, 0),
		Inputs:       in,
	}
}

func TestAnalyzeUniformThermalImage(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	report, err := svc.Analyze(context.Background(), uniformRequest(t, uniformInputs()))
	require.NoError(t, err)

	// 均匀图像没有热斑，损失完全由平均温差驱动
	require.Empty(t, report.Hotspots)
	require.InDelta(t, 100*(15.0-5.0), report.Totals.InstantaneousW, 1e-6)
	require.Greater(t, report.Totals.AnnualKWhDeltaT, 0.0)
	require.InDelta(t, 1000.0/17*40000/1000, report.Totals.AnnualKWhDeltaT, 1e-6)

	sum := 0.0
	for _, c := range report.Components {
		sum += c.AreaM2
	}
	require.LessOrEqual(t, sum, 100*1.01)

	require.Equal(t, "segmentation", report.Meta.AreaSource)
	require.Equal(t, "table", report.Meta.DegreeHoursSource)
	require.Equal(t, "mock", report.Meta.SegmentationBackend)
}

func TestAnalyzeIdempotent(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	a, err := svc.Analyze(context.Background(), uniformRequest(t, uniformInputs()))
	require.NoError(t, err)
	b, err := svc.Analyze(context.Background(), uniformRequest(t, uniformInputs()))
	require.NoError(t, err)

	require.Equal(t, a.Totals, b.Totals)
	require.Equal(t, a.Headline.EstimatedAnnualHeatLossKWh, b.Headline.EstimatedAnnualHeatLossKWh)
	require.Equal(t, a.Headline.PresentValueEur, b.Headline.PresentValueEur)
	require.Equal(t, a.Components, b.Components)
}

func TestAnalyzeColderCityYieldsHigherAnnualLoss(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	warm := uniformInputs()
	warm.City = "Cordoba"
	warmReport, err := svc.Analyze(context.Background(), uniformRequest(t, warm))
	require.NoError(t, err)

	cold := uniformInputs()
	cold.City = "Budapest"
	cold.Country = "Hungary"
	coldReport, err := svc.Analyze(context.Background(), uniformRequest(t, cold))
	require.NoError(t, err)

	// 瞬时读数相同，年化由气候决定
	require.InDelta(t, warmReport.Totals.InstantaneousW, coldReport.Totals.InstantaneousW, 1e-6)
	require.Greater(t, coldReport.Headline.EstimatedAnnualHeatLossKWh, warmReport.Headline.EstimatedAnnualHeatLossKWh)
}

func TestAnalyzeHotspotOverrideWithZeroDetectedPixels(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	in := uniformInputs()
	in.HotspotAreaM2 = fptr(5)
	report, err := svc.Analyze(context.Background(), uniformRequest(t, in))
	require.NoError(t, err)
	require.Empty(t, report.Hotspots)

	var wall *model.ComponentResult
	for i := range report.Components {
		if report.Components[i].Label == "wall" {
			wall = &report.Components[i]
		}
	}
	require.NotNil(t, wall)
	require.Equal(t, "override", wall.HotspotSource)
	require.InDelta(t, 5.0, wall.HotspotAreaM2, 1e-9)
}

func TestAnalyzeClimateUnavailableDegradesToInstantaneous(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	in := uniformInputs()
	in.City = "Atlantis"
	in.Country = "Nowhere"
	report, err := svc.Analyze(context.Background(), uniformRequest(t, in))
	require.NoError(t, err)

	require.Equal(t, "unavailable", report.Meta.DegreeHoursSource)
	require.NotZero(t, report.Totals.InstantaneousW)
	require.Zero(t, report.Totals.AnnualKWhDeltaT)
	require.Zero(t, report.Totals.AnnualKWhUValue)

	found := false
	for _, note := range report.Meta.MethodNotes {
		if note == "climate data unavailable: instantaneous results only" {
			found = true
		}
	}
	require.True(t, found)
}

func TestAnalyzeDetectsHotspotInWindow(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	// 64×64：墙体基底100、左上角墙面暖块150、窗户中心热块255。
	// 90分位阈值落在150，两个块都成为热斑区域
	thermal := thermalPNG(t, 64, 64, 100, []struct {
		x, y, w, h int
		v          uint8
	}{
		{x: 0, y: 0, w: 16, h: 16, v: 150},
		{x: 24, y: 24, w: 16, h: 16, v: 255},
	})

	in := uniformInputs()
	in.ThermalMinC = fptr(0)
	in.ThermalMaxC = fptr(25.5)
	in.OverlayThresholdPercentile = fptr(90)
	yes, no := true, false
	in.IncludeOverlay = &yes
	in.IncludeBoxedRGB = &yes
	in.IncludeRGB = &no
	in.IncludeThermal = &no

	report, err := svc.Analyze(context.Background(), &AnalyzeRequest{
		Fingerprint:  "fp-hot",
		AnalysisID:   "abcdef0123",
		RGBImage:     grayPNG(t, 64, 64, 128),
		ThermalImage: thermal,
		Inputs:       in,
	})
	require.NoError(t, err)
	require.Len(t, report.Hotspots, 2)

	byComponent := map[string]model.Hotspot{}
	for _, h := range report.Hotspots {
		byComponent[h.Component] = h
	}

	hot, ok := byComponent["window"]
	require.True(t, ok)
	require.Equal(t, 256, hot.AreaPx)
	require.InDelta(t, 25.5, hot.PeakTempC, 1e-6)
	require.Equal(t, "high", hot.Severity)

	warm, ok := byComponent["wall"]
	require.True(t, ok)
	require.Equal(t, 256, warm.AreaPx)
	require.InDelta(t, 15.0, warm.MeanTempC, 1e-6)

	require.NotEmpty(t, report.Images.OverlayPNG)
	require.NotEmpty(t, report.Images.BoxedRGBPNG)
	require.Empty(t, report.Images.RGBPNG)
}

func TestAnalyzePercentileClampNoted(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	in := uniformInputs()
	in.OverlayThresholdPercentile = fptr(50)
	report, err := svc.Analyze(context.Background(), uniformRequest(t, in))
	require.NoError(t, err)

	require.Equal(t, 80.0, report.Meta.Percentile)
	found := false
	for _, note := range report.Meta.MethodNotes {
		if strings.HasPrefix(note, "overlay_threshold_percentile") {
			found = true
		}
	}
	require.True(t, found)
}

type failingSegmenter struct{}

func (failingSegmenter) Name() string { return "failing" }
func (failingSegmenter) Segment(context.Context, *image.RGBA) (*ClassMask, error) {
	return nil, model.NewSegmentationError("inference backend unavailable", nil)
}

func TestAnalyzeSegmentationFailureWithManualSplit(t *testing.T) {
	svc := newTestService(failingSegmenter{})

	in := uniformInputs()
	in.WallAreaM2 = fptr(80)
	in.WindowAreaM2 = fptr(15)
	in.DoorAreaM2 = fptr(5)

	report, err := svc.Analyze(context.Background(), uniformRequest(t, in))
	require.NoError(t, err)
	require.Equal(t, "manual_split", report.Meta.AreaSource)
	require.Contains(t, report.Meta.MethodNotes, "segmentation failed: manual area split used")
	// 无掩膜时构件表面温度退化为室内温度
	require.InDelta(t, 100*(22.0-5.0), report.Totals.InstantaneousW, 1e-6)
}

func TestAnalyzeSegmentationFailureWithoutFallback(t *testing.T) {
	svc := newTestService(failingSegmenter{})

	_, err := svc.Analyze(context.Background(), uniformRequest(t, uniformInputs()))
	require.Error(t, err)
	require.True(t, model.IsCode(err, model.ErrSegmentation))
}

func TestAnalyzeInvalidImages(t *testing.T) {
	svc := newTestService(NewMockSegmenter())

	req := uniformRequest(t, uniformInputs())
	req.RGBImage = []byte("garbage")
	_, err := svc.Analyze(context.Background(), req)
	require.Error(t, err)
	require.True(t, model.IsCode(err, model.ErrInvalidInput))

	req = uniformRequest(t, uniformInputs())
	req.ThermalImage = nil
	_, err = svc.Analyze(context.Background(), req)
	require.Error(t, err)
	require.True(t, model.IsCode(err, model.ErrInvalidInput))
}

func TestAnalyzeQueueFull(t *testing.T) {
	cfg := testEngineConfig()
	cfg.MaxConcurrent = 0
	cfg.QueueTimeout = 0
	climate := newOfflineClimate()
	materials := NewMaterialStore(&config.MaterialsConfig{DataFile: "testdata/does-not-exist.yaml"})
	svc := NewAnalysisService(cfg, NewMockSegmenter(), climate, materials)

	_, err := svc.Analyze(context.Background(), uniformRequest(t, uniformInputs()))
	require.Error(t, err)
	require.True(t, model.IsCode(err, model.ErrQueueFull))
}
