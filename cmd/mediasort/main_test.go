package main

import (
	"testing"
)

func TestParseRunArgs_PositionalAndFlags(t *testing.T) {
	ra, err := parseRunArgs([]string{"in", "out", "--year", "--dry-run=false", "--config", "c.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ra.Source != "in" || ra.Dest != "out" {
		t.Fatalf("位置参数不符合预期：%+v", ra)
	}
	if !ra.YearSet || !ra.Year {
		t.Fatalf("期望 --year 被记录：%+v", ra)
	}
	if ra.MonthSet {
		t.Fatalf("不期望 month 被记录：%+v", ra)
	}
	if !ra.DryRunSet || ra.DryRun {
		t.Fatalf("期望 --dry-run=false 被记录：%+v", ra)
	}
	if !ra.ConfigPathSet || ra.ConfigPath != "c.json" {
		t.Fatalf("期望 --config 被记录：%+v", ra)
	}
}

func TestParseRunArgs_EqualsFormConfig(t *testing.T) {
	ra, err := parseRunArgs([]string{"--config=x.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ra.ConfigPathSet || ra.ConfigPath != "x.json" {
		t.Fatalf("期望 --config=x.json 被记录：%+v", ra)
	}
}

func TestParseRunArgs_BadBool(t *testing.T) {
	if _, err := parseRunArgs([]string{"--year=basically"}); err == nil {
		t.Fatalf("期望报错")
	}
}

func TestParseRunArgs_UnknownFlag(t *testing.T) {
	if _, err := parseRunArgs([]string{"--nope"}); err == nil {
		t.Fatalf("期望报错")
	}
}

func TestParseRunArgs_TooManyPositionals(t *testing.T) {
	if _, err := parseRunArgs([]string{"a", "b", "c"}); err == nil {
		t.Fatalf("期望报错")
	}
}

func TestParseRunArgs_ConfigNeedsValue(t *testing.T) {
	if _, err := parseRunArgs([]string{"--config"}); err == nil {
		t.Fatalf("期望报错")
	}
}
