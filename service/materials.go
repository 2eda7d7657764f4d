package service

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// 内置U值预设，数据文件缺失时兜底
var builtinUValues = map[string]float64{
	"uninsulated_brick_wall": 1.2,
	"insulated_wall":         0.3,
	"single_glazed_window":   2.8,
	"double_glazed_window":   1.1,
	"triple_glazed_window":   0.8,
	"default":                1.0,
}

var builtinMaterialDefaults = map[string]string{
	"wall":   "uninsulated_brick_wall",
	"window": "single_glazed_window",
	"door":   "default",
}

var builtinImprovedDefaults = map[string]string{
	"wall":   "insulated_wall",
	"window": "double_glazed_window",
	"door":   "default",
}

type materialsFile struct {
	UValues          map[string]float64 `mapstructure:"u_values"`
	Defaults         map[string]string  `mapstructure:"defaults"`
	ImprovedDefaults map[string]string  `mapstructure:"improved_defaults"`
}

// MaterialStore 材料U值表，数据文件变更时热更新
type MaterialStore struct {
	mu               sync.RWMutex
	uvalues          map[string]float64
	defaults         map[string]string
	improvedDefaults map[string]string

	dataFile string
	watcher  *fsnotify.Watcher
}

func NewMaterialStore(cfg *config.MaterialsConfig) *MaterialStore {
	s := &MaterialStore{dataFile: cfg.DataFile}
	s.reload()
	return s
}

// reload 从数据文件加载，内置预设作为基底被文件内容覆盖
func (s *MaterialStore) reload() {
	uvalues := make(map[string]float64, len(builtinUValues))
	for k, v := range builtinUValues {
		uvalues[k] = v
	}
	defaults := make(map[string]string, len(builtinMaterialDefaults))
	for k, v := range builtinMaterialDefaults {
		defaults[k] = v
	}
	improved := make(map[string]string, len(builtinImprovedDefaults))
	for k, v := range builtinImprovedDefaults {
		improved[k] = v
	}

	v := viper.New()
	v.SetConfigFile(s.dataFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		utils.Logger.Warn("material data file unavailable, using built-in presets",
			zap.String("file", s.dataFile), zap.Error(err))
	} else {
		var file materialsFile
		if err := v.Unmarshal(&file); err != nil {
			utils.Logger.Warn("failed to parse material data file",
				zap.String("file", s.dataFile), zap.Error(err))
		} else {
			for k, val := range file.UValues {
				uvalues[k] = val
			}
			for k, val := range file.Defaults {
				defaults[k] = val
			}
			for k, val := range file.ImprovedDefaults {
				improved[k] = val
			}
		}
	}

	s.mu.Lock()
	s.uvalues = uvalues
	s.defaults = defaults
	s.improvedDefaults = improved
	s.mu.Unlock()
}

// UValue 按材料名取U值，未知材料退回 default 预设
func (s *MaterialStore) UValue(name string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.uvalues[name]; ok {
		return v
	}
	return s.uvalues["default"]
}

// Has 材料名是否存在
func (s *MaterialStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.uvalues[name]
	return ok
}

// DefaultMaterial 构件的默认材料（当前/改造后）
func (s *MaterialStore) DefaultMaterial(component string, improved bool) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	if improved {
		name = s.improvedDefaults[component]
	} else {
		name = s.defaults[component]
	}
	if name == "" {
		name = "default"
	}
	return name
}

// Watch 监听数据文件所在目录，写入后热更新
func (s *MaterialStore) Watch() error {
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

func (s *MaterialStore) watchLoop() {
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
				utils.Logger.Info("material data changed, reloading", zap.String("file", event.Name))
				s.reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			utils.Logger.Warn("material watcher error", zap.Error(err))
		}
	}
}

func (s *MaterialStore) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
