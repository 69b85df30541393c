package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicatePeriod 周期唯一约束 (semester_id, period_number) 冲突：已被并发请求写入
var ErrDuplicatePeriod = errors.New("周期编号已存在")

// IsUniqueViolation 判断数据库错误是否为唯一约束冲突
// gorm TranslateError 覆盖大部分方言；消息匹配兜底未翻译的驱动错误
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}
