package service

import (
	"time"

	"github.com/tasklog/internal/db"
)

// PeriodWindow 表示一个统计周期的起止日期（含两端）
type PeriodWindow struct {
	Start time.Time
	End   time.Time
}

// Days 返回周期覆盖的天数。
// 按 UTC 午夜做日历差值，本地时区的夏令时切换不会让跨月窗口少算一天。
func (w PeriodWindow) Days() int {
	start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours()/24) + 1
}

// normalizeToDate 去掉时间部分，只保留日历日期
func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// periodWindow 计算参考日期 d 所在的统计周期。
// daily 为单日窗口；weekly 为 d 所在的周一到周日；monthly 为 d 所在月份的
// 首日到末日；custom 以 d 为起点向后 periodValue-1 天（不做周期对齐）。
// 未知类型回退为单日窗口。
func periodWindow(periodType string, periodValue int, d time.Time) PeriodWindow {
	day := normalizeToDate(d)

	switch periodType {
	case db.PeriodTypeDaily:
		return PeriodWindow{Start: day, End: day}
	case db.PeriodTypeWeekly:
		// 周日按 -6 处理，避免窗口跨到下周一
		offset := int(day.Weekday()) - 1
		if day.Weekday() == time.Sunday {
			offset = 6
		}
		start := day.AddDate(0, 0, -offset)
		return PeriodWindow{Start: start, End: start.AddDate(0, 0, 6)}
	case db.PeriodTypeMonthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return PeriodWindow{Start: start, End: start.AddDate(0, 1, -1)}
	case db.PeriodTypeCustom:
		days := periodValue
		if days < 1 {
			days = 1
		}
		return PeriodWindow{Start: day, End: day.AddDate(0, 0, days-1)}
	default:
		return PeriodWindow{Start: day, End: day}
	}
}

// windowExpectedCount 计算窗口内的预期打卡次数（每天一次折算）
func windowExpectedCount(periodType string, periodValue int, w PeriodWindow) int {
	switch periodType {
	case db.PeriodTypeDaily:
		return w.Days()
	case db.PeriodTypeWeekly:
		return 7
	case db.PeriodTypeMonthly:
		return w.Days()
	case db.PeriodTypeCustom:
		if periodValue > 0 {
			return periodValue
		}
		return w.Days()
	default:
		return 1
	}
}

// nextDueDate 根据周期定义计算 fromDate 之后的下次到期日期。
// monthly 借助日历月推进，月末溢出由 AddDate 的进位规则处理。
func nextDueDate(periodType string, periodValue int, fromDate time.Time) time.Time {
	day := normalizeToDate(fromDate)

	switch periodType {
	case db.PeriodTypeDaily:
		return day.AddDate(0, 0, 1)
	case db.PeriodTypeWeekly:
		return day.AddDate(0, 0, 7)
	case db.PeriodTypeMonthly:
		return day.AddDate(0, 1, 0)
	case db.PeriodTypeCustom:
		if periodValue > 0 {
			return day.AddDate(0, 0, periodValue)
		}
		return day.AddDate(0, 0, 1)
	default:
		return day.AddDate(0, 0, 1)
	}
}

// expectedValue 计算数值型任务在一个窗口内的预期累计值。
// daily 的目标值按天数放大（"每天 5 公里"），其余类型的目标值
// 就是整个周期的目标（"每周 50 公里"），不做放大。
func expectedValue(completionType string, targetValue *float64, periodType string, expectedCount int) float64 {
	if completionType != db.CompletionTypeNumeric || targetValue == nil || *targetValue == 0 {
		return 0
	}

	if periodType == db.PeriodTypeDaily {
		return *targetValue * float64(expectedCount)
	}
	return *targetValue
}
