package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type accessRecord struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Msg     string `json:"msg"`
	TraceID string `json:"trace_id,omitempty"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Status  int    `json:"status"`
	Latency string `json:"latency"`
	Client  string `json:"client_ip"`
	Error   string `json:"error,omitempty"`
}

// SetupGin 挂载 JSON 访问日志与 Recovery
func SetupGin(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output: LogWriter,
		// 健康检查不记录
		SkipPaths: []string{"/api/ping"},
		Formatter: func(p gin.LogFormatterParams) string {
			var traceID string
			if id, ok := p.Keys[TraceIDKey].(string); ok {
				traceID = id
			}
			level := "INFO"
			if p.StatusCode >= 500 {
				level = "ERROR"
			}
			b, err := json.Marshal(&accessRecord{
				Time:    p.TimeStamp.Format(time.RFC3339),
				Level:   level,
				Msg:     "GIN_ACCESS",
				TraceID: traceID,
				Method:  p.Method,
				Path:    p.Path,
				Status:  p.StatusCode,
				Latency: p.Latency.String(),
				Client:  p.ClientIP,
				Error:   p.ErrorMessage,
			})
			if err != nil {
				return ""
			}
			return string(b) + "\n"
		},
	}))

	r.Use(gin.Recovery())
}
