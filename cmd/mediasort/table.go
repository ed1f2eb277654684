package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// renderBucketTable 把桶结果渲染成汇总表（只在交互模式收尾时输出）。
func renderBucketTable(rr domain.RunReport) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"KEY", "FILES", "RENAMED", "DIR"})

	totalFiles, totalRenamed := 0, 0
	for _, b := range rr.Buckets {
		renamed := 0
		for _, f := range b.Files {
			if f.Renamed {
				renamed++
			}
		}
		totalFiles += len(b.Files)
		totalRenamed += renamed
		tw.AppendRow(table.Row{b.Key, len(b.Files), renamed, b.Dir})
	}
	tw.AppendFooter(table.Row{"TOTAL", totalFiles, totalRenamed, ""})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
