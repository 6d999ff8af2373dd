package kafka

import (
	"Courier/internal/pkg/util"

	"github.com/pkg/errors"
)

const (
	INSERT = "INSERT"
	UPDATE = "UPDATE"
	DELETE = "DELETE"
)

var (
	ErrTableMismatch = errors.New("table name not match")
	ErrEmptyData     = errors.New("canal message data is empty")
)

// CanalMessage Canal 推送到 Kafka 的 JSON 数据结构
type CanalMessage struct {
	ID       int64    `json:"id"`
	Database string   `json:"database"`
	Table    string   `json:"table"`
	PKNames  []string `json:"pkNames"`
	IsDDL    bool     `json:"isDdl"`
	Type     string   `json:"type"`
	ES       int64    `json:"es"`
	TS       int64    `json:"ts"`

	// Data 变更后的行，Canal 以字符串形式输出列值
	Data []map[string]interface{} `json:"data"`
	// Old 变更前被修改的列
	Old []map[string]interface{} `json:"old"`
}

// ColumnChanged UPDATE 事件中任意一行修改了给定列之一
func (m *CanalMessage) ColumnChanged(columns ...string) bool {
	if m.Type != UPDATE {
		return true
	}
	for _, row := range m.Old {
		for _, col := range columns {
			if _, ok := row[col]; ok {
				return true
			}
		}
	}
	return false
}

// StrToUint64 解析 Canal 列值，无法解析时返回 0
func StrToUint64(v interface{}) uint64 {
	switch val := v.(type) {
	case string:
		n, _ := util.ParseUint64(val)
		return n
	case float64:
		if val < 0 {
			return 0
		}
		return uint64(val)
	default:
		return 0
	}
}
