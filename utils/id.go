package utils

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// AnalysisID 生成10位十六进制分析任务ID
func AnalysisID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:10]
}
