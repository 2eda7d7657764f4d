package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetReport 按请求指纹取缓存报告
func (s *RedisService) GetReport(ctx context.Context, fingerprint string) (*model.Report, error) {
	return s.getByKey(ctx, "report:"+fingerprint)
}

// GetReportByAnalysisID 按分析ID取缓存报告
func (s *RedisService) GetReportByAnalysisID(ctx context.Context, analysisID string) (*model.Report, error) {
	return s.getByKey(ctx, "analysis:"+analysisID)
}

func (s *RedisService) getByKey(ctx context.Context, key string) (*model.Report, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		utils.Logger.Error("failed to unmarshal cached report",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &report, nil
}

// SetReport 报告同时写入指纹键与分析ID键
func (s *RedisService) SetReport(ctx context.Context, fingerprint string, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, "report:"+fingerprint, data, s.ttl)
	if report.Meta.AnalysisID != "" {
		pipe.Set(ctx, "analysis:"+report.Meta.AnalysisID, data, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
