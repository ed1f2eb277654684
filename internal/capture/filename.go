package capture

import (
	"path/filepath"
	"regexp"
	"time"
)

// 文件名日期模式，按特异性从高到低依次尝试，先命中者生效。
var namePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	// DJI_20220815223344_0001.jpg
	{regexp.MustCompile(`DJI_(\d{8})`), "20060102"},
	// IMG_20240131_123456.jpg
	{regexp.MustCompile(`(\d{8})_\d{6}`), "20060102"},
	// 2023-07-04_beach.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
}

// filenameYearMonth 从文件名解析日期；解析出的年份要过合理性检查，
// 避免把随机数字串当成日期。
func filenameYearMonth(path string) (year, month int, ok bool) {
	name := filepath.Base(path)
	for _, p := range namePatterns {
		m := p.re.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		t, err := time.Parse(p.layout, m[1])
		if err != nil {
			continue
		}
		y := t.Year()
		if y <= 1900 || y > time.Now().Year()+1 {
			continue
		}
		return y, int(t.Month()), true
	}
	return 0, 0, false
}
