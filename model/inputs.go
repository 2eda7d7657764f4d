package model

import (
	"fmt"
	"strings"
)

// 构件标签，与分割类别一一对应
const (
	ComponentWall       = "wall"
	ComponentWindow     = "window"
	ComponentDoor       = "door"
	ComponentBackground = "background"
)

// CalculationInputs 一次分析的全部标量输入，图像文件单独处理。
// 必填字段用指针区分"未提供"与合法的零值。
type CalculationInputs struct {
	City    string `form:"city" json:"city"`
	Country string `form:"country" json:"country"`

	FacadeAreaM2       *float64 `form:"facade_area_m2" json:"facade_area_m2"`
	FuelPriceEurPerKWh *float64 `form:"fuel_price_eur_per_kwh" json:"fuel_price_eur_per_kwh"`
	HeatingBaseTempC   *float64 `form:"heating_base_temp_c" json:"heating_base_temp_c"`
	TInsideC           *float64 `form:"t_inside_c" json:"t_inside_c"`
	TOutsideC          *float64 `form:"t_outside_c" json:"t_outside_c"`

	Latitude    *float64 `form:"latitude" json:"latitude,omitempty"`
	Longitude   *float64 `form:"longitude" json:"longitude,omitempty"`
	DatetimeISO string   `form:"datetime_iso" json:"datetime_iso,omitempty"`

	DiscountRate      *float64 `form:"discount_rate" json:"discount_rate,omitempty"`
	InflationRate     *float64 `form:"inflation_rate" json:"inflation_rate,omitempty"`
	PresentValueYears *int     `form:"present_value_years" json:"present_value_years,omitempty"`

	// 热斑面积覆盖值，应用于墙体构件
	HotspotAreaM2              *float64 `form:"hotspot_area_m2" json:"hotspot_area_m2,omitempty"`
	OverlayThresholdPercentile *float64 `form:"overlay_threshold_percentile" json:"overlay_threshold_percentile,omitempty"`

	// 热像标定范围，映射灰度[0,255]到摄氏温度；缺省时表面温度退化为室内温度
	ThermalMinC *float64 `form:"thermal_min_c" json:"thermal_min_c,omitempty"`
	ThermalMaxC *float64 `form:"thermal_max_c" json:"thermal_max_c,omitempty"`

	// 构件级 U 值与材料覆盖
	UValueWall           *float64 `form:"u_value_wall" json:"u_value_wall,omitempty"`
	UValueWindow         *float64 `form:"u_value_window" json:"u_value_window,omitempty"`
	UValueDoor           *float64 `form:"u_value_door" json:"u_value_door,omitempty"`
	UValueWallImproved   *float64 `form:"u_value_wall_improved" json:"u_value_wall_improved,omitempty"`
	UValueWindowImproved *float64 `form:"u_value_window_improved" json:"u_value_window_improved,omitempty"`
	UValueDoorImproved   *float64 `form:"u_value_door_improved" json:"u_value_door_improved,omitempty"`
	MaterialWall         string   `form:"material_wall" json:"material_wall,omitempty"`
	MaterialWindow       string   `form:"material_window" json:"material_window,omitempty"`
	MaterialDoor         string   `form:"material_door" json:"material_door,omitempty"`
	MaterialWallImproved string   `form:"material_wall_improved" json:"material_wall_improved,omitempty"`
	MaterialWindowImproved string `form:"material_window_improved" json:"material_window_improved,omitempty"`
	MaterialDoorImproved string   `form:"material_door_improved" json:"material_door_improved,omitempty"`

	// 分割失败时的手动面积拆分
	WallAreaM2   *float64 `form:"wall_area_m2" json:"wall_area_m2,omitempty"`
	WindowAreaM2 *float64 `form:"window_area_m2" json:"window_area_m2,omitempty"`
	DoorAreaM2   *float64 `form:"door_area_m2" json:"door_area_m2,omitempty"`

	// 气候查询失败时的兜底值
	DegreeHoursFallback *float64 `form:"degree_hours_fallback" json:"degree_hours_fallback,omitempty"`
	HDDFallback         *float64 `form:"hdd_fallback" json:"hdd_fallback,omitempty"`

	EmissionFactorKgPerKWh *float64 `form:"emission_factor_kg_per_kwh" json:"emission_factor_kg_per_kwh,omitempty"`

	IncludeOverlay  *bool `form:"include_overlay" json:"include_overlay,omitempty"`
	IncludeRGB      *bool `form:"include_rgb" json:"include_rgb,omitempty"`
	IncludeThermal  *bool `form:"include_thermal" json:"include_thermal,omitempty"`
	IncludeBoxedRGB *bool `form:"include_boxed_rgb" json:"include_boxed_rgb,omitempty"`
}

// Validate 校验必填字段与取值范围，一次性返回全部问题
func (in *CalculationInputs) Validate() error {
	var problems []string

	if strings.TrimSpace(in.City) == "" {
		problems = append(problems, "city is required")
	}
	if strings.TrimSpace(in.Country) == "" {
		problems = append(problems, "country is required")
	}
	if in.FacadeAreaM2 == nil {
		problems = append(problems, "facade_area_m2 is required")
	} else if *in.FacadeAreaM2 <= 0 {
		problems = append(problems, "facade_area_m2 must be positive")
	}
	if in.FuelPriceEurPerKWh == nil {
		problems = append(problems, "fuel_price_eur_per_kwh is required")
	} else if *in.FuelPriceEurPerKWh < 0 {
		problems = append(problems, "fuel_price_eur_per_kwh must not be negative")
	}
	if in.HeatingBaseTempC == nil {
		problems = append(problems, "heating_base_temp_c is required")
	}
	if in.TInsideC == nil {
		problems = append(problems, "t_inside_c is required")
	}
	if in.TOutsideC == nil {
		problems = append(problems, "t_outside_c is required")
	}

	if in.HotspotAreaM2 != nil && *in.HotspotAreaM2 < 0 {
		problems = append(problems, "hotspot_area_m2 must not be negative")
	}
	if (in.ThermalMinC == nil) != (in.ThermalMaxC == nil) {
		problems = append(problems, "thermal_min_c and thermal_max_c must be provided together")
	} else if in.ThermalMinC != nil && *in.ThermalMaxC <= *in.ThermalMinC {
		problems = append(problems, "thermal_max_c must be greater than thermal_min_c")
	}
	if in.PresentValueYears != nil && *in.PresentValueYears < 1 {
		problems = append(problems, "present_value_years must be at least 1")
	}
	if in.EmissionFactorKgPerKWh != nil && *in.EmissionFactorKgPerKWh < 0 {
		problems = append(problems, "emission_factor_kg_per_kwh must not be negative")
	}
	for name, v := range map[string]*float64{
		"wall_area_m2":          in.WallAreaM2,
		"window_area_m2":        in.WindowAreaM2,
		"door_area_m2":          in.DoorAreaM2,
		"degree_hours_fallback": in.DegreeHoursFallback,
		"hdd_fallback":          in.HDDFallback,
	} {
		if v != nil && *v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", name))
		}
	}
	for name, v := range map[string]*float64{
		"u_value_wall":            in.UValueWall,
		"u_value_window":          in.UValueWindow,
		"u_value_door":            in.UValueDoor,
		"u_value_wall_improved":   in.UValueWallImproved,
		"u_value_window_improved": in.UValueWindowImproved,
		"u_value_door_improved":   in.UValueDoorImproved,
	} {
		if v != nil && *v <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", name))
		}
	}

	if len(problems) > 0 {
		return NewInvalidInput(strings.Join(problems, "; "))
	}
	return nil
}

// HasManualSplit 是否提供了手动面积拆分
func (in *CalculationInputs) HasManualSplit() bool {
	return in.WallAreaM2 != nil || in.WindowAreaM2 != nil || in.DoorAreaM2 != nil
}

// Calibrated 是否提供了热像标定范围
func (in *CalculationInputs) Calibrated() bool {
	return in.ThermalMinC != nil && in.ThermalMaxC != nil
}

// UValueOverride 返回构件的 U 值覆盖，未提供返回 nil
func (in *CalculationInputs) UValueOverride(component string) *float64 {
	switch component {
	case ComponentWall:
		return in.UValueWall
	case ComponentWindow:
		return in.UValueWindow
	case ComponentDoor:
		return in.UValueDoor
	}
	return nil
}

// UValueImprovedOverride 返回构件改造后的 U 值覆盖
func (in *CalculationInputs) UValueImprovedOverride(component string) *float64 {
	switch component {
	case ComponentWall:
		return in.UValueWallImproved
	case ComponentWindow:
		return in.UValueWindowImproved
	case ComponentDoor:
		return in.UValueDoorImproved
	}
	return nil
}

// MaterialOverride 返回构件的材料覆盖（当前/改造后）
func (in *CalculationInputs) MaterialOverride(component string, improved bool) string {
	switch component {
	case ComponentWall:
		if improved {
			return in.MaterialWallImproved
		}
		return in.MaterialWall
	case ComponentWindow:
		if improved {
			return in.MaterialWindowImproved
		}
		return in.MaterialWindow
	case ComponentDoor:
		if improved {
			return in.MaterialDoorImproved
		}
		return in.MaterialDoor
	}
	return ""
}

// ManualAreaM2 返回构件的手动面积，未提供返回 0
func (in *CalculationInputs) ManualAreaM2(component string) float64 {
	var v *float64
	switch component {
	case ComponentWall:
		v = in.WallAreaM2
	case ComponentWindow:
		v = in.WindowAreaM2
	case ComponentDoor:
		v = in.DoorAreaM2
	}
	if v == nil {
		return 0
	}
	return *v
}
