package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeyShape 决定分组键的形态，构造后对整个运行保持不变。
//
// 三种形态是封闭集合：所有使用点都必须做穷尽 switch，
// 遇到未知值直接 panic（属于编程错误，不是运行时输入问题）。
type KeyShape int

const (
	ShapeYearMonth KeyShape = iota
	ShapeYear
	ShapeMonth
)

func (s KeyShape) String() string {
	switch s {
	case ShapeYearMonth:
		return "year+month"
	case ShapeYear:
		return "year"
	case ShapeMonth:
		return "month"
	default:
		panic(fmt.Sprintf("未知的 KeyShape：%d", int(s)))
	}
}

// ShapeOf 由两个分组开关解析出键形态；两者都为 false 时返回 ok=false。
func ShapeOf(byYear, byMonth bool) (KeyShape, bool) {
	switch {
	case byYear && byMonth:
		return ShapeYearMonth, true
	case byYear:
		return ShapeYear, true
	case byMonth:
		return ShapeMonth, true
	default:
		return ShapeYearMonth, false
	}
}

// TimeKey 是投影到某个 KeyShape 之后的分组键。
//
// 哨兵键（全零）表示“无拍摄时间”：它是合法且可排序的最小键，
// 不是错误状态；被丢弃的分量恒为零。
type TimeKey struct {
	Year  int
	Month int
}

// Project 把原始 (year, month) 投影到 s 形态的键上（丢弃不参与分组的分量）。
func (s KeyShape) Project(year, month int) TimeKey {
	switch s {
	case ShapeYearMonth:
		return TimeKey{Year: year, Month: month}
	case ShapeYear:
		return TimeKey{Year: year}
	case ShapeMonth:
		return TimeKey{Month: month}
	default:
		panic(fmt.Sprintf("未知的 KeyShape：%d", int(s)))
	}
}

// Less 定义键的全序：先比年，再比月。哨兵键因此总是排在最前。
func (k TimeKey) Less(o TimeKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// Segments 返回该键在目标树下的路径段。
//
// 年分量按十进制渲染（哨兵年即字面 "0"）；月分量渲染为英文月份名，
// 1–12 以外一律 "Unknown"。
func (k TimeKey) Segments(s KeyShape) []string {
	switch s {
	case ShapeYearMonth:
		return []string{strconv.Itoa(k.Year), MonthName(k.Month)}
	case ShapeYear:
		return []string{strconv.Itoa(k.Year)}
	case ShapeMonth:
		return []string{MonthName(k.Month)}
	default:
		panic(fmt.Sprintf("未知的 KeyShape：%d", int(s)))
	}
}

// Label 是键的展示形态（"2024/January"、"2024"、"January"），
// 用于进度行、汇总表与报告；分隔符固定为 '/'，与平台无关。
func (k TimeKey) Label(s KeyShape) string {
	return strings.Join(k.Segments(s), "/")
}

// MonthName 把 1–12 映射为英文月份名；其余任何值（含哨兵 0）映射为 "Unknown"。
func MonthName(m int) string {
	if m >= 1 && m <= 12 {
		return time.Month(m).String()
	}
	return "Unknown"
}
