package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jluque-app/thermal-ai/model"
	"github.com/jluque-app/thermal-ai/service"
	"github.com/jluque-app/thermal-ai/utils"
	"go.uber.org/zap"
)

type RenderHandler struct {
	renderer *service.RendererClient
}

func NewRenderHandler(renderer *service.RendererClient) *RenderHandler {
	return &RenderHandler{renderer: renderer}
}

// Render 将分析报告提交给外部渲染服务，返回排版后的文档。
// 请求体为先前 /analyze 返回的报告JSON，format 支持 pptx 与 pdf
func (h *RenderHandler) Render(c *gin.Context) {
	format := c.DefaultQuery("format", "pptx")
	if format != "pptx" && format != "pdf" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文档格式",
			Error:   "format must be pptx or pdf",
		})
		return
	}

	var report model.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "报告JSON格式错误",
			Error:   err.Error(),
		})
		return
	}

	data, contentType, err := h.renderer.Render(c.Request.Context(), &report, format)
	if err != nil {
		utils.Logger.Error("report rendering failed",
			zap.String("format", format),
			zap.String("analysis_id", report.Meta.AnalysisID),
			zap.Error(err))

		status := http.StatusInternalServerError
		message := "报告渲染失败"
		if model.IsCode(err, model.ErrRendererUnavailable) {
			status = http.StatusServiceUnavailable
			message = "渲染服务不可用"
		}
		c.JSON(status, model.ErrorResponse{
			Success: false,
			Message: message,
			Error:   err.Error(),
		})
		return
	}

	utils.Logger.Info("report rendered",
		zap.String("format", format),
		zap.String("analysis_id", report.Meta.AnalysisID),
		zap.Int("size", len(data)))

	c.Data(http.StatusOK, contentType, data)
}
