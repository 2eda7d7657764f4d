package service

import (
	"testing"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func newTestResolver() *GeometryResolver {
	return NewGeometryResolver(&config.EngineConfig{AreaTolerance: 0.01})
}

// 10×10掩膜：上2行背景，墙60、窗16、门4像素
func testMask() *ClassMask {
	mask := NewClassMask(10, 10)
	for y := 2; y < 10; y++ {
		for x := 0; x < 10; x++ {
			mask.Set(x, y, ClassWall)
		}
	}
	for y := 3; y < 7; y++ {
		for x := 3; x < 7; x++ {
			mask.Set(x, y, ClassWindow)
		}
	}
	for y := 8; y < 10; y++ {
		for x := 4; x < 6; x++ {
			mask.Set(x, y, ClassDoor)
		}
	}
	return mask
}

func TestFromMaskAreas(t *testing.T) {
	r := newTestResolver()
	in := &model.CalculationInputs{}

	geo, err := r.FromMask(testMask(), 100, nil, in)
	require.NoError(t, err)
	require.Equal(t, "segmentation", geo.AreaSource)
	require.Equal(t, 80, geo.ForegroundPx)

	wall := geo.Component(ClassWall)
	window := geo.Component(ClassWindow)
	door := geo.Component(ClassDoor)
	require.InDelta(t, 75.0, wall.AreaM2, 1e-9)
	require.InDelta(t, 20.0, window.AreaM2, 1e-9)
	require.InDelta(t, 5.0, door.AreaM2, 1e-9)

	sum := wall.AreaM2 + window.AreaM2 + door.AreaM2
	require.LessOrEqual(t, sum, 100*1.01)
}

func TestFromMaskNoForeground(t *testing.T) {
	r := newTestResolver()
	mask := NewClassMask(4, 4) // 全背景

	_, err := r.FromMask(mask, 100, nil, &model.CalculationInputs{})
	require.Error(t, err)
	require.True(t, model.IsCode(err, model.ErrSegmentation))
}

func TestFromMaskHotspotAreas(t *testing.T) {
	r := newTestResolver()
	hs := &HotspotResult{StatsByClass: map[uint8]HotspotClassStats{
		ClassWall: {Pixels: 6, MeanTemp: 30, PeakTemp: 35},
	}}

	geo, err := r.FromMask(testMask(), 100, hs, &model.CalculationInputs{})
	require.NoError(t, err)

	wall := geo.Component(ClassWall)
	require.Equal(t, "detected", wall.HotspotSource)
	require.InDelta(t, 75.0*6/60, wall.HotspotAreaM2, 1e-9)
	require.Empty(t, geo.Component(ClassWindow).HotspotSource)
}

func TestHotspotOverrideAppliesToWall(t *testing.T) {
	r := newTestResolver()
	in := &model.CalculationInputs{HotspotAreaM2: fptr(5)}

	// 检测到0个热斑像素时覆盖值仍然生效
	geo, err := r.FromMask(testMask(), 100, &HotspotResult{StatsByClass: map[uint8]HotspotClassStats{}}, in)
	require.NoError(t, err)

	wall := geo.Component(ClassWall)
	require.Equal(t, "override", wall.HotspotSource)
	require.InDelta(t, 5.0, wall.HotspotAreaM2, 1e-9)
}

func TestHotspotOverrideClampedToWallArea(t *testing.T) {
	r := newTestResolver()
	in := &model.CalculationInputs{HotspotAreaM2: fptr(500)}

	geo, err := r.FromMask(testMask(), 100, nil, in)
	require.NoError(t, err)

	wall := geo.Component(ClassWall)
	require.InDelta(t, wall.AreaM2, wall.HotspotAreaM2, 1e-9)
	require.NotEmpty(t, geo.Notes)
}

func TestFromManualSplit(t *testing.T) {
	r := newTestResolver()
	in := &model.CalculationInputs{
		WallAreaM2:   fptr(60),
		WindowAreaM2: fptr(15),
		DoorAreaM2:   fptr(5),
	}

	geo, err := r.FromManualSplit(in, 100)
	require.NoError(t, err)
	require.Equal(t, "manual_split", geo.AreaSource)

	// 未覆盖的剩余面积归入墙体
	require.InDelta(t, 80.0, geo.Component(ClassWall).AreaM2, 1e-9)
	require.InDelta(t, 15.0, geo.Component(ClassWindow).AreaM2, 1e-9)
	require.InDelta(t, 5.0, geo.Component(ClassDoor).AreaM2, 1e-9)
}

func TestManualSplitRenormalized(t *testing.T) {
	r := newTestResolver()
	in := &model.CalculationInputs{
		WallAreaM2:   fptr(90),
		WindowAreaM2: fptr(40),
		DoorAreaM2:   fptr(10),
	}

	geo, err := r.FromManualSplit(in, 100)
	require.NoError(t, err)

	sum := 0.0
	for _, c := range geo.Components {
		sum += c.AreaM2
	}
	require.InDelta(t, 100.0, sum, 1e-9)
	require.NotEmpty(t, geo.Notes)
}
