package model

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Hotspot 单个热斑区域
type Hotspot struct {
	BoundingBox BBox    `json:"bounding_box"`
	AreaPx      int     `json:"area_px"`
	PeakTempC   float64 `json:"peak_temp_c"`
	MeanTempC   float64 `json:"mean_temp_c"`
	Component   string  `json:"component,omitempty"` // wall, window, door；无掩膜时为空
	Severity    string  `json:"severity"`            // high, medium, low
}

// ComponentResult 单个构件的面积与两种方法的热损失结果
type ComponentResult struct {
	Label         string  `json:"label"`
	DisplayLabel  string  `json:"display_label"`
	PixelCount    int     `json:"pixel_count"`
	AreaM2        float64 `json:"area_m2"`
	MeanTempC     float64 `json:"mean_temp_c"`
	HotspotAreaM2 float64 `json:"hotspot_area_m2"`
	HotspotSource string  `json:"hotspot_source,omitempty"` // detected, override

	InstantaneousW       float64 `json:"instantaneous_w"`
	InstantaneousWUValue float64 `json:"instantaneous_w_u_value"`
	AnnualKWhDeltaT      float64 `json:"annual_kwh_delta_t"`
	AnnualKWhUValue      float64 `json:"annual_kwh_u_value"`
	AnnualKWhSavedUValue float64 `json:"annual_kwh_saved_u_value"`

	UCurrent  float64 `json:"u_current"`
	UImproved float64 `json:"u_improved,omitempty"`

	CostEurDeltaT float64 `json:"cost_eur_delta_t"`
	CostEurUValue float64 `json:"cost_eur_u_value"`
	CO2Kg         float64 `json:"co2_kg"`
	SharePct      float64 `json:"share_pct"`
}

// Totals 两种方法的合计，互不合并
type Totals struct {
	InstantaneousW       float64 `json:"instantaneous_w"`
	InstantaneousWUValue float64 `json:"instantaneous_w_u_value"`
	AnnualKWhDeltaT      float64 `json:"annual_kwh_delta_t"`
	AnnualKWhUValue      float64 `json:"annual_kwh_u_value"`
	AnnualKWhSavedUValue float64 `json:"annual_kwh_saved_u_value"`
	CostEurDeltaT        float64 `json:"cost_eur_delta_t"`
	CostEurUValue        float64 `json:"cost_eur_u_value"`
	CO2Kg                float64 `json:"co2_kg"`
}

// Headline 报告核心结论
type Headline struct {
	EstimatedAnnualHeatLossKWh float64 `json:"estimated_annual_heat_loss_kwh"`
	EstimatedAnnualCostEur     float64 `json:"estimated_annual_cost_eur"`
	EstimatedCO2Kg             float64 `json:"estimated_co2_kg"`
	PresentValueEur            float64 `json:"present_value_eur"`
	PresentValueYears          int     `json:"present_value_years"`
	Confidence                 string  `json:"confidence"` // Medium, Low
	KeyDriver                  string  `json:"key_driver"`
}

// ReportImages base64 编码的PNG图像
type ReportImages struct {
	OverlayPNG  string `json:"overlay_png,omitempty"`
	RGBPNG      string `json:"rgb_png,omitempty"`
	ThermalPNG  string `json:"thermal_png,omitempty"`
	BoxedRGBPNG string `json:"boxed_rgb_png,omitempty"`
}

// Registration 热像对齐信息
type Registration struct {
	Used   bool   `json:"used"`
	Method string `json:"method"`
}

// ReportMeta 分析元信息，所有降级路径都在 MethodNotes 留痕
type ReportMeta struct {
	AnalysisID          string       `json:"analysis_id"`
	City                string       `json:"city"`
	Country             string       `json:"country"`
	CreatedAt           string       `json:"created_at"`
	BaseTempC           float64      `json:"base_temp_c"`
	TInsideC            float64      `json:"t_inside_c"`
	TOutsideC           float64      `json:"t_outside_c"`
	DegreeHours         float64      `json:"degree_hours"`
	DegreeHoursSource   string       `json:"degree_hours_source"` // table, api, fallback, unavailable
	HDD                 float64      `json:"hdd"`
	Percentile          float64      `json:"percentile"`
	ThresholdTempC      float64      `json:"threshold_temp_c"`
	ThermalCalibrated   bool         `json:"thermal_calibrated"`
	AreaSource          string       `json:"area_source"` // segmentation, manual_split
	SegmentationBackend string       `json:"segmentation_backend"`
	Registration        Registration `json:"registration"`
	MethodNotes         []string     `json:"method_notes"`
	Findings            []string     `json:"findings"`
	Assumptions         []string     `json:"assumptions"`
	Disclaimer          string       `json:"disclaimer"`
}

// Report 完整分析报告，构建后不再修改
type Report struct {
	Fingerprint   string            `json:"fingerprint"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Headline      Headline          `json:"headline"`
	Components    []ComponentResult `json:"components"`
	Totals        Totals            `json:"totals"`
	Hotspots      []Hotspot         `json:"hotspots"`
	MultiYearCost map[int]float64   `json:"multi_year_cost_eur"`
	Images        ReportImages      `json:"images"`
	Meta          ReportMeta        `json:"meta"`
	Timestamp     int64             `json:"timestamp"`
}

// AnalyzeResponse 分析响应
type AnalyzeResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    *Report `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
