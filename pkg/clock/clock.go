// Package clock 提供固定时区下的“当前日期”抽象，以及日历日期的换算工具。
//
// 日历日期统一表示为 UTC 零点的 time.Time，便于直接写入 DATE 列并做比较；
// 时区只在“现在是哪一天”这一步参与换算。
package clock

import (
	"fmt"
	"time"
)

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// Clock 时间提供者
type Clock interface {
	Now() time.Time
	// Today 返回所配置时区下的当前日历日期
	Today() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

// New 创建基于系统时间的 Clock
func New(timezone string) (Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区 %q 失败: %w", timezone, err)
	}
	return &systemClock{loc: loc}, nil
}

func (c *systemClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *systemClock) Today() time.Time         { return DateOf(time.Now(), c.loc) }
func (c *systemClock) Location() *time.Location { return c.loc }

// FixedClock 固定时间的 Clock，用于测试与离线计算
type FixedClock struct {
	now time.Time
	loc *time.Location
}

// NewFixed 创建固定时间的 Clock；loc 为 nil 时使用 UTC
func NewFixed(now time.Time, loc *time.Location) *FixedClock {
	if loc == nil {
		loc = time.UTC
	}
	return &FixedClock{now: now, loc: loc}
}

func (c *FixedClock) Now() time.Time           { return c.now.In(c.loc) }
func (c *FixedClock) Today() time.Time         { return DateOf(c.now, c.loc) }
func (c *FixedClock) Location() *time.Location { return c.loc }

// Set 调整固定时间
func (c *FixedClock) Set(now time.Time) { c.now = now }

// DateOf 取 t 在 loc 时区下的日历日期
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date 构造日历日期
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的日期 %q: %w", s, err)
	}
	return t, nil
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Normalize 丢弃时分秒，保留 t 自身时区下的日期
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays 日期加减天数
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// DaysBetween 返回 to - from 的整天数
func DaysBetween(from, to time.Time) int {
	return int(Normalize(to).Sub(Normalize(from)).Hours() / 24)
}
