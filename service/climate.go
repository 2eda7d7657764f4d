package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// 城市度时表按13°C基准温度标定，其他基准走API或兜底值
const cityTableBaseTempC = 13.0

var monthDays = [12]float64{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ClimateResult 供暖气候数据，HDD 恒等于 DegreeHours/24
type ClimateResult struct {
	DegreeHours float64
	HDD         float64
	BaseTempC   float64
	Source      string // table, api, fallback
}

type cityEntry struct {
	City        string   `mapstructure:"city"`
	Country     string   `mapstructure:"country"`
	Aliases     []string `mapstructure:"aliases"`
	DegreeHours float64  `mapstructure:"degree_hours"`
	Latitude    float64  `mapstructure:"latitude"`
	Longitude   float64  `mapstructure:"longitude"`
}

type citiesFile struct {
	Cities []cityEntry `mapstructure:"cities"`
}

var builtinCities = []cityEntry{
	{City: "Salamanca", Country: "Spain", DegreeHours: 40000, Latitude: 40.9701, Longitude: -5.6635},
	{City: "Cordoba", Country: "Spain", Aliases: []string{"Córdoba"}, DegreeHours: 16000, Latitude: 37.8882, Longitude: -4.7794},
	{City: "Madrid", Country: "Spain", DegreeHours: 30000, Latitude: 40.4168, Longitude: -3.7038},
	{City: "Barcelona", Country: "Spain", DegreeHours: 22000, Latitude: 41.3851, Longitude: 2.1734},
	{City: "Budapest", Country: "Hungary", DegreeHours: 52000, Latitude: 47.4979, Longitude: 19.0402},
	{City: "Gyor", Country: "Hungary", Aliases: []string{"Győr"}, DegreeHours: 50000, Latitude: 47.6875, Longitude: 17.6504},
}

// ClimateService 供暖度时解析：城市表 → 气候API → 调用方兜底值
type ClimateService struct {
	mu      sync.RWMutex
	entries map[string]cityEntry

	apiBase    string
	disableAPI bool
	httpClient *http.Client

	dataFile string
	watcher  *fsnotify.Watcher
}

func NewClimateService(cfg *config.ClimateConfig) *ClimateService {
	s := &ClimateService{
		apiBase:    strings.TrimRight(cfg.APIBaseURL, "/"),
		disableAPI: cfg.DisableAPI,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		dataFile:   cfg.DataFile,
	}
	s.reload()
	return s
}

// reload 内置城市表作为基底，数据文件条目覆盖同名城市
func (s *ClimateService) reload() {
	entries := make(map[string]cityEntry)
	index := func(e cityEntry) {
		entries[normalizeCity(e.City)] = e
		for _, alias := range e.Aliases {
			entries[normalizeCity(alias)] = e
		}
	}
	for _, e := range builtinCities {
		index(e)
	}

	v := viper.New()
	v.SetConfigFile(s.dataFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		utils.Logger.Warn("city data file unavailable, using built-in table",
			zap.String("file", s.dataFile), zap.Error(err))
	} else {
		var file citiesFile
		if err := v.Unmarshal(&file); err != nil {
			utils.Logger.Warn("failed to parse city data file",
				zap.String("file", s.dataFile), zap.Error(err))
		} else {
			for _, e := range file.Cities {
				index(e)
			}
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

func normalizeCity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *ClimateService) lookup(city, country string) (cityEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[normalizeCity(city)]
	if !ok {
		return cityEntry{}, false
	}
	if country != "" && e.Country != "" && !strings.EqualFold(strings.TrimSpace(country), e.Country) {
		return cityEntry{}, false
	}
	return e, true
}

// Resolve 解析供暖度时。兜底值由调用方随请求提供，全部失败返回
// ClimateDataUnavailable，由上层决定是否降级为仅瞬时结果
func (s *ClimateService) Resolve(ctx context.Context, in *model.CalculationInputs) (*ClimateResult, error) {
	base := *in.HeatingBaseTempC

	if math.Abs(base-cityTableBaseTempC) < 1e-6 {
		if e, ok := s.lookup(in.City, in.Country); ok {
			return &ClimateResult{
				DegreeHours: e.DegreeHours,
				HDD:         e.DegreeHours / 24,
				BaseTempC:   base,
				Source:      "table",
			}, nil
		}
	}

	var apiErr error
	if !s.disableAPI {
		if lat, lon, ok := s.coords(in); ok {
			dh, err := s.fetchDegreeHours(ctx, lat, lon, base)
			if err == nil {
				return &ClimateResult{
					DegreeHours: dh,
					HDD:         dh / 24,
					BaseTempC:   base,
					Source:      "api",
				}, nil
			}
			apiErr = err
			utils.Logger.Warn("climate api lookup failed",
				zap.String("city", in.City),
				zap.Float64("latitude", lat),
				zap.Float64("longitude", lon),
				zap.Error(err))
		}
	}

	if in.DegreeHoursFallback != nil {
		dh := *in.DegreeHoursFallback
		return &ClimateResult{DegreeHours: dh, HDD: dh / 24, BaseTempC: base, Source: "fallback"}, nil
	}
	if in.HDDFallback != nil {
		dh := *in.HDDFallback * 24
		return &ClimateResult{DegreeHours: dh, HDD: dh / 24, BaseTempC: base, Source: "fallback"}, nil
	}

	return nil, model.NewClimateDataUnavailable(
		fmt.Sprintf("no degree-hour data for %s, %s at base %.1f°C", in.City, in.Country, base), apiErr)
}

// coords 取请求坐标，缺省时回退到城市表坐标
func (s *ClimateService) coords(in *model.CalculationInputs) (float64, float64, bool) {
	if in.Latitude != nil && in.Longitude != nil {
		return *in.Latitude, *in.Longitude, true
	}
	if e, ok := s.lookup(in.City, in.Country); ok && (e.Latitude != 0 || e.Longitude != 0) {
		return e.Latitude, e.Longitude, true
	}
	return 0, 0, false
}

// fetchDegreeHours 调用气候API取ERA5月均温，按月积分出度时
func (s *ClimateService) fetchDegreeHours(ctx context.Context, lat, lon, base float64) (float64, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start_date", "1991-01-01")
	q.Set("end_date", "2020-12-31")
	q.Set("models", "ERA5")
	q.Set("monthly", "temperature_2m_mean")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/v1/climate?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("climate api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Monthly struct {
			Temperature2mMean []float64 `json:"temperature_2m_mean"`
		} `json:"monthly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode climate response: %w", err)
	}

	means := payload.Monthly.Temperature2mMean
	if len(means) < 12 {
		return 0, fmt.Errorf("climate api returned %d monthly values", len(means))
	}

	dh := 0.0
	for m := 0; m < 12; m++ {
		if d := base - means[m]; d > 0 {
			dh += d * monthDays[m] * 24
		}
	}
	return dh, nil
}

// Watch 监听城市数据文件变更并热更新
func (s *ClimateService) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.dataFile)); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	go s.watchLoop()
	return nil
}

func (s *ClimateService) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.dataFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				utils.Logger.Info("city data changed, reloading", zap.String("file", event.Name))
				s.reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			utils.Logger.Warn("city watcher error", zap.Error(err))
		}
	}
}

func (s *ClimateService) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
