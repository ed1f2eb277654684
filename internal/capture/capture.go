package capture

import (
	"io"
	"os"
	"strings"
	"time"

	exifv3 "github.com/dsoprea/go-exif/v3"
	"github.com/rwcarlsen/goexif/exif"
)

// 拍摄时间字段的固定文本格式。
const dateTimeLayout = "2006:01:02 15:04:05"

// Result 是单个文件的时间提取结果。
//
// Found 与 Unreadable 相互独立：容器打不开（Unreadable）时，
// 后备来源（伴生 JSON、文件名）仍可能给出时间。
type Result struct {
	Year   int
	Month  int
	Found  bool
	Source string // "exif" | "sidecar" | "filename"

	// Unreadable 表示文件本体无法打开读取。
	// 不中断整个运行，只计入汇总。
	Unreadable bool
}

// Extractor 从单个媒体文件提取拍摄年月。
//
// 提取顺序固定：EXIF → 伴生 JSON → 文件名；先命中者生效。
// 两个后备来源默认关闭，只能通过配置文件开启。
type Extractor struct {
	SidecarJSON   bool
	FilenameDates bool
}

// Extract 尽力提取 path 的拍摄年月；任何单文件异常都不是致命错误。
func (e Extractor) Extract(path string) Result {
	year, month, found, unreadable := exifYearMonth(path)
	if found {
		return Result{Year: year, Month: month, Found: true, Source: "exif", Unreadable: unreadable}
	}

	res := Result{Unreadable: unreadable}
	if e.SidecarJSON {
		if y, m, ok := sidecarYearMonth(path); ok {
			res.Year, res.Month, res.Found, res.Source = y, m, true, "sidecar"
			return res
		}
	}
	if e.FilenameDates {
		if y, m, ok := filenameYearMonth(path); ok {
			res.Year, res.Month, res.Found, res.Source = y, m, true, "filename"
			return res
		}
	}
	return res
}

// exifYearMonth 读取嵌入式 EXIF 的 DateTimeOriginal。
//
// 先用 goexif 按容器解析（JPEG/TIFF）；容器不被识别时（HEIC、PNG），
// 退回 go-exif 的暴力扫描，按 TIFF 字节序标记定位裸 EXIF 块。
// goexif 已识别容器但字段缺失或无法解析的，按“无时间”处理，不再扫描。
func exifYearMonth(path string) (year, month int, found, unreadable bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false, true
	}
	defer f.Close()

	if x, err := exif.Decode(f); err == nil {
		tag, err := x.Get(exif.DateTimeOriginal)
		if err != nil {
			return 0, 0, false, false
		}
		s, err := tag.StringVal()
		if err != nil {
			return 0, 0, false, false
		}
		y, m, ok := parseDateTime(s)
		return y, m, ok, false
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, 0, false, false
	}
	raw, err := exifv3.SearchAndExtractExifWithReader(f)
	if err != nil {
		return 0, 0, false, false
	}
	ets, _, err := exifv3.GetFlatExifData(raw, &exifv3.ScanOptions{})
	if err != nil {
		return 0, 0, false, false
	}
	for _, et := range ets {
		if et.TagName != "DateTimeOriginal" {
			continue
		}
		s, ok := et.Value.(string)
		if !ok {
			continue
		}
		if y, m, ok := parseDateTime(s); ok {
			return y, m, true, false
		}
	}
	return 0, 0, false, false
}

// parseDateTime 严格按固定格式解析；"0000:00:00 00:00:00" 这类
// 超出范围的值会被 time.Parse 拒绝，等同于无时间。
func parseDateTime(s string) (year, month int, ok bool) {
	s = strings.Trim(s, "\x00 \t\r\n")
	t, err := time.Parse(dateTimeLayout, s)
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), int(t.Month()), true
}
