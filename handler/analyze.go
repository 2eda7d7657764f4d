package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/middleware"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/service"
	"github.com/jluque-app/thermal-ai/utils"
	"go.uber.org/zap"
)

type AnalyzeHandler struct {
	cfg             *config.Config
	redisService    *service.RedisService
	analysisService *service.AnalysisService
}

func NewAnalyzeHandler(cfg *config.Config, redis *service.RedisService, analysis *service.AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{
		cfg:             cfg,
		redisService:    redis,
		analysisService: analysis,
	}
}

// Analyze 处理热损失分析请求
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var inputs model.CalculationInputs
	if err := c.ShouldBind(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求参数格式错误",
			Error:   err.Error(),
		})
		return
	}

	rgbData, err := h.readImage(c, "rgb_image")
	if err != nil {
		utils.Logger.Error("failed to read rgb image", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传RGB图片文件 (rgb_image)",
			Error:   err.Error(),
		})
		return
	}

	thermalData, err := h.readImage(c, "thermal_image")
	if err != nil {
		utils.Logger.Error("failed to read thermal image", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传热成像图片文件 (thermal_image)",
			Error:   err.Error(),
		})
		return
	}

	if err := inputs.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "输入校验失败",
			Error:   err.Error(),
		})
		return
	}

	// 请求指纹：两张图片加规范化参数，用于结果缓存
	params, err := json.Marshal(&inputs)
	if err != nil {
		utils.Logger.Error("failed to marshal inputs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "请求处理失败",
			Error:   err.Error(),
		})
		return
	}
	fingerprint := utils.FingerprintMD5(rgbData, thermalData, params)

	utils.Logger.Info("analysis request received",
		zap.String("fingerprint", fingerprint),
		zap.String("city", inputs.City),
		zap.Int("rgb_size", len(rgbData)),
		zap.Int("thermal_size", len(thermalData)))

	ctx := context.Background()

	cached, err := h.redisService.GetReport(ctx, fingerprint)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		utils.Logger.Info("cache hit", zap.String("fingerprint", fingerprint))
		middleware.CacheHits.Inc()
		c.JSON(http.StatusOK, model.AnalyzeResponse{
			Success: true,
			Message: "分析成功（来自缓存）",
			Data:    cached,
		})
		return
	}
	middleware.CacheMisses.Inc()

	report, err := h.analysisService.Analyze(ctx, &service.AnalyzeRequest{
		Fingerprint:  fingerprint,
		AnalysisID:   utils.AnalysisID(),
		RGBImage:     rgbData,
		ThermalImage: thermalData,
		Inputs:       &inputs,
	})
	if err != nil {
		middleware.AnalysesTotal.WithLabelValues("error").Inc()
		h.writeAnalysisError(c, err)
		return
	}
	middleware.AnalysesTotal.WithLabelValues("ok").Inc()

	if err := h.redisService.SetReport(ctx, fingerprint, report); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, model.AnalyzeResponse{
		Success: true,
		Message: "分析成功",
		Data:    report,
	})
}

// GetByID 按分析ID查询缓存报告
func (h *AnalyzeHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "分析ID参数缺失",
		})
		return
	}

	ctx := context.Background()
	report, err := h.redisService.GetReportByAnalysisID(ctx, id)
	if err != nil {
		utils.Logger.Error("failed to get report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	if report == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该分析结果",
		})
		return
	}

	c.JSON(http.StatusOK, model.AnalyzeResponse{
		Success: true,
		Message: "查询成功",
		Data:    report,
	})
}

// readImage 读取multipart图片文件并做大小与类型校验
func (h *AnalyzeHandler) readImage(c *gin.Context, field string) ([]byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s is required: %w", field, err)
	}

	if file.Size > h.cfg.Upload.MaxSize {
		return nil, fmt.Errorf("%s exceeds size limit (%d MB)", field, h.cfg.Upload.MaxSize/(1024*1024))
	}

	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		return nil, fmt.Errorf("%s has unsupported content type %q", field, contentType)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return io.ReadAll(src)
}

func (h *AnalyzeHandler) writeAnalysisError(c *gin.Context, err error) {
	utils.Logger.Error("analysis failed", zap.Error(err))

	status := http.StatusInternalServerError
	message := "分析失败"
	switch model.CodeOf(err) {
	case model.ErrInvalidInput:
		status = http.StatusBadRequest
		message = "输入校验失败"
	case model.ErrSegmentation:
		status = http.StatusUnprocessableEntity
		message = "外观分割失败，且未提供手动面积拆分"
	case model.ErrQueueFull:
		status = http.StatusServiceUnavailable
		message = "处理队列已满，请稍后重试"
	}

	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

func (h *AnalyzeHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
