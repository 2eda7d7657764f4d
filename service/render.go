package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jluque-app/thermal-ai/config"
	"github.com/jluque-app/thermal-ai/model"
)

// RendererClient 外部报告渲染服务的客户端。
// 渲染器消费完整报告JSON，返回排版后的文档（pptx/pdf）
type RendererClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRendererClient(cfg *config.RendererConfig) *RendererClient {
	return &RendererClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled 是否配置了渲染服务地址
func (c *RendererClient) Enabled() bool {
	return c.baseURL != ""
}

// Render 提交报告并返回文档字节与内容类型
func (c *RendererClient) Render(ctx context.Context, report *model.Report, format string) ([]byte, string, error) {
	if !c.Enabled() {
		return nil, "", model.NewRendererUnavailable(fmt.Errorf("renderer base url is not configured"))
	}

	body, err := json.Marshal(report)
	if err != nil {
		return nil, "", err
	}

	endpoint := c.baseURL + "/render?format=" + url.QueryEscape(format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", model.NewRendererUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", model.NewRendererUnavailable(
			fmt.Errorf("renderer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", model.NewRendererUnavailable(err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}
