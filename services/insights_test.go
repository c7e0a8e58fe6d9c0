package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

func strPtr(s string) *string { return &s }

func sampleRecords() []models.MergedRecord {
	return []models.MergedRecord{
		{Title: "아이폰 15", Price: "1,050,000원", Location: "역삼동", Category: strPtr("디지털기기"), MannerTemperature: 40},
		{Title: "에어팟", Price: "150,000원", Location: "역삼동", Category: strPtr("디지털기기"), MannerTemperature: 36.5},
		{Title: "상품권", Price: "45,000원", Location: "서초동", Category: strPtr("티켓/교환권")},
		{Title: "케이스", Price: "나눔", Location: "논현동", Category: strPtr("디지털기기")},
		{Title: "문의", Price: "가격 문의", Location: "", Category: nil},
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleRecords(), models.RunStats{})

	if r.PricedRecords != 4 {
		t.Errorf("PricedRecords: got %d, want 4", r.PricedRecords)
	}
	if r.MinPrice != 0 {
		t.Errorf("MinPrice: got %d, want 0", r.MinPrice)
	}
	if r.MaxPrice != 1050000 {
		t.Errorf("MaxPrice: got %d, want 1050000", r.MaxPrice)
	}
	if r.AveragePrice != 311250 {
		t.Errorf("AveragePrice: got %.2f, want 311250", r.AveragePrice)
	}
}

func TestInsightMostExpensive(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleRecords(), models.RunStats{})
	if r.MostExpensive == nil {
		t.Fatal("MostExpensive should not be nil")
	}
	if r.MostExpensive.Title != "아이폰 15" {
		t.Errorf("MostExpensive: got %q, want %q", r.MostExpensive.Title, "아이폰 15")
	}
}

func TestInsightGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleRecords(), models.RunStats{})
	if r.RecordsByCategory["디지털기기"] != 3 {
		t.Errorf("디지털기기 count: got %d, want 3", r.RecordsByCategory["디지털기기"])
	}
	if len(r.RecordsByCategory) != 2 {
		t.Errorf("categories: got %d, want 2", len(r.RecordsByCategory))
	}
	if r.RecordsByLocation["역삼동"] != 2 {
		t.Errorf("역삼동 count: got %d, want 2", r.RecordsByLocation["역삼동"])
	}
	if _, ok := r.RecordsByLocation[""]; ok {
		t.Error("blank location should not be counted")
	}
	if r.AverageTemperature != 38.25 {
		t.Errorf("AverageTemperature: got %.2f, want 38.25", r.AverageTemperature)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil, models.RunStats{Collected: 3})
	if r.PricedRecords != 0 || r.MostExpensive != nil {
		t.Errorf("expected no price data for empty input")
	}
	if r.Stats.Collected != 3 {
		t.Errorf("stats not carried into the report")
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0m 0s"},
		{59 * time.Second, "0m 59s"},
		{61500 * time.Millisecond, "1m 2s"},
		{12*time.Minute + 3*time.Second, "12m 3s"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.d); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q; want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatWon(t *testing.T) {
	for n, want := range map[int]string{0: "0", 999: "999", 1000: "1,000", 1050000: "1,050,000"} {
		if got := formatWon(n); got != want {
			t.Errorf("formatWon(%d) = %q; want %q", n, got, want)
		}
	}
}

func TestFprintReport(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	stats := models.RunStats{RunID: "run-1", StopReason: "target_reached", Collected: 60, Written: 5, Elapsed: 75 * time.Second}
	var buf bytes.Buffer
	Fprint(&buf, svc.Generate(sampleRecords(), stats))

	out := buf.String()
	for _, want := range []string{"run-1", "1m 15s", "target_reached", "1,050,000원", "디지털기기"} {
		if !strings.Contains(out, want) {
			t.Errorf("report is missing %q", want)
		}
	}
}

func TestInsightGenerateLogsSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := utils.NewLoggerTo(&buf)
	logger.SetDebug(true)

	NewInsightService(logger).Generate(sampleRecords(), models.RunStats{})

	if !strings.Contains(buf.String(), "[insights] 5 records, 4 priced, 2 categories, 3 locations") {
		t.Errorf("missing summary line, got %q", buf.String())
	}
}
