package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Climate      ClimateConfig      `mapstructure:"climate"`
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Materials    MaterialsConfig    `mapstructure:"materials"`
	Renderer     RendererConfig     `mapstructure:"renderer"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type EngineConfig struct {
	MaxConcurrent          int     `mapstructure:"max_concurrent"`
	QueueTimeout           int     `mapstructure:"queue_timeout"`
	MaxImageSide           int     `mapstructure:"max_image_side"`
	ProxyCoefficient       float64 `mapstructure:"proxy_coefficient"`
	DefaultPercentile      float64 `mapstructure:"default_percentile"`
	PercentileFloor        float64 `mapstructure:"percentile_floor"`
	PercentileCeil         float64 `mapstructure:"percentile_ceil"`
	MinHotspotAreaPx       int     `mapstructure:"min_hotspot_area_px"`
	MaxHotspots            int     `mapstructure:"max_hotspots"`
	RepresentativeTemp     string  `mapstructure:"representative_temp"`
	EmissionFactorKgPerKWh float64 `mapstructure:"emission_factor_kg_per_kwh"`
	PresentValueYears      int     `mapstructure:"present_value_years"`
	AreaTolerance          float64 `mapstructure:"area_tolerance"`
}

type ClimateConfig struct {
	DataFile   string        `mapstructure:"data_file"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
	DisableAPI bool          `mapstructure:"disable_api"`
}

type SegmentationConfig struct {
	Backend     string `mapstructure:"backend"`
	ModelPath   string `mapstructure:"model_path"`
	InputSize   int    `mapstructure:"input_size"`
	WallClass   int    `mapstructure:"wall_class"`
	DoorClass   int    `mapstructure:"door_class"`
	WindowClass int    `mapstructure:"window_class"`
}

type MaterialsConfig struct {
	DataFile string `mapstructure:"data_file"`
}

type RendererConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load 从 YAML 文件加载配置，环境变量以 THERMALAI_ 前缀覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("THERMALAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	// .env 可选，缺失时忽略
	_ = godotenv.Load()

	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})

	v.SetDefault("engine.max_concurrent", 3)
	v.SetDefault("engine.queue_timeout", 30)
	v.SetDefault("engine.max_image_side", 1024)
	v.SetDefault("engine.proxy_coefficient", 1.0)
	v.SetDefault("engine.default_percentile", 95.0)
	v.SetDefault("engine.percentile_floor", 80.0)
	v.SetDefault("engine.percentile_ceil", 98.0)
	v.SetDefault("engine.min_hotspot_area_px", 200)
	v.SetDefault("engine.max_hotspots", 20)
	v.SetDefault("engine.representative_temp", "mean")
	v.SetDefault("engine.emission_factor_kg_per_kwh", 0.20)
	v.SetDefault("engine.present_value_years", 15)
	v.SetDefault("engine.area_tolerance", 0.01)

	v.SetDefault("climate.data_file", "data/cities.yaml")
	v.SetDefault("climate.api_base_url", "https://climate-api.open-meteo.com")
	v.SetDefault("climate.api_timeout", 20*time.Second)
	v.SetDefault("climate.disable_api", false)

	v.SetDefault("segmentation.backend", "mock")
	v.SetDefault("segmentation.model_path", "models/facade.onnx")
	v.SetDefault("segmentation.input_size", 520)
	v.SetDefault("segmentation.wall_class", 1)
	v.SetDefault("segmentation.door_class", 3)
	v.SetDefault("segmentation.window_class", 8)

	v.SetDefault("materials.data_file", "data/materials.yaml")

	v.SetDefault("renderer.base_url", "")
	v.SetDefault("renderer.timeout", 120*time.Second)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
		},
		Engine: EngineConfig{
			MaxConcurrent:          3,
			QueueTimeout:           30,
			MaxImageSide:           1024,
			ProxyCoefficient:       1.0,
			DefaultPercentile:      95.0,
			PercentileFloor:        80.0,
			PercentileCeil:         98.0,
			MinHotspotAreaPx:       200,
			MaxHotspots:            20,
			RepresentativeTemp:     "mean",
			EmissionFactorKgPerKWh: 0.20,
			PresentValueYears:      15,
			AreaTolerance:          0.01,
		},
		Climate: ClimateConfig{
			DataFile:   "data/cities.yaml",
			APIBaseURL: "https://climate-api.open-meteo.com",
			APITimeout: 20 * time.Second,
			DisableAPI: false,
		},
		Segmentation: SegmentationConfig{
			Backend:     "mock",
			ModelPath:   "models/facade.onnx",
			InputSize:   520,
			WallClass:   1,
			DoorClass:   3,
			WindowClass: 8,
		},
		Materials: MaterialsConfig{
			DataFile: "data/materials.yaml",
		},
		Renderer: RendererConfig{
			BaseURL: "",
			Timeout: 120 * time.Second,
		},
	}
}
