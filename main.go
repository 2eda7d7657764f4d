package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/handler"
	"github.com/jluque-app/thermal-ai/middleware"
	"github.com/jluque-app/thermal-ai/service"
	"github.com/jluque-app/thermal-ai/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting thermal-ai server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 初始化Redis
	redisService := service.NewRedisService(&cfg.Redis)
	ctx := context.Background()
	if err := redisService.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
	}
	defer redisService.Close()

	// 分割后端在启动时构建一次，进程内只读共享；
	// DNN后端不可用时降级到mock，保证服务可启动
	segmenter, err := service.NewSegmenter(&cfg.Segmentation)
	if err != nil {
		utils.Logger.Warn("segmentation backend unavailable, falling back to mock",
			zap.String("backend", cfg.Segmentation.Backend), zap.Error(err))
		segmenter = service.NewMockSegmenter()
	}
	utils.Logger.Info("segmentation backend ready", zap.String("backend", segmenter.Name()))

	// 气候与材料数据表，文件变更时热更新
	climateService := service.NewClimateService(&cfg.Climate)
	if err := climateService.Watch(); err != nil {
		utils.Logger.Warn("city data watcher disabled", zap.Error(err))
	}
	defer climateService.Close()

	materialStore := service.NewMaterialStore(&cfg.Materials)
	if err := materialStore.Watch(); err != nil {
		utils.Logger.Warn("material data watcher disabled", zap.Error(err))
	}
	defer materialStore.Close()

	analysisService := service.NewAnalysisService(&cfg.Engine, segmenter, climateService, materialStore)
	rendererClient := service.NewRendererClient(&cfg.Renderer)

	// 初始化Handler
	analyzeHandler := handler.NewAnalyzeHandler(cfg, redisService, analysisService)
	renderHandler := handler.NewRenderHandler(rendererClient)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		cacheState := "ok"
		if err := redisService.Ping(c.Request.Context()); err != nil {
			cacheState = "unavailable"
		}
		c.JSON(200, gin.H{
			"status":       "ok",
			"version":      Version,
			"segmentation": segmenter.Name(),
			"cache":        cacheState,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/analyze", analyzeHandler.Analyze)
		api.GET("/analysis/:id", analyzeHandler.GetByID)
		api.POST("/report/render", renderHandler.Render)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// 优雅退出，等待在途分析完成
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
}
