package capture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Google Takeout 伴生 JSON：photoTakenTime.timestamp 是字符串形式的
// Unix 秒，按 UTC 解释。
type sidecarData struct {
	PhotoTakenTime struct {
		Timestamp string `json:"timestamp"`
	} `json:"photoTakenTime"`
}

// sidecarYearMonth 依次尝试 <name>.json 与去掉扩展名的 <base>.json。
func sidecarYearMonth(path string) (year, month int, ok bool) {
	candidates := []string{
		path + ".json",
		strings.TrimSuffix(path, filepath.Ext(path)) + ".json",
	}
	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var sc sidecarData
		if err := json.Unmarshal(b, &sc); err != nil {
			continue
		}
		ts, err := strconv.ParseInt(sc.PhotoTakenTime.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		return t.Year(), int(t.Month()), true
	}
	return 0, 0, false
}
