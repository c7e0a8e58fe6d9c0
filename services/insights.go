package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises the final records of a run.
func (s *InsightService) Generate(records []models.MergedRecord, stats models.RunStats) *models.InsightReport {
	report := &models.InsightReport{
		Stats:             stats,
		RecordsByCategory: make(map[string]int),
		RecordsByLocation: make(map[string]int),
	}

	var total, temperatures float64
	var rated int
	for i := range records {
		r := &records[i]
		if cat := r.CategoryText(); cat != "" {
			report.RecordsByCategory[cat]++
		}
		if r.Location != "" {
			report.RecordsByLocation[r.Location]++
		}
		if r.MannerTemperature > 0 {
			temperatures += r.MannerTemperature
			rated++
		}

		price, ok := ParsePrice(r.Price)
		if !ok {
			continue
		}
		if report.PricedRecords == 0 || price < report.MinPrice {
			report.MinPrice = price
		}
		if report.PricedRecords == 0 || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = r
		}
		total += float64(price)
		report.PricedRecords++
	}

	if report.PricedRecords > 0 {
		report.AveragePrice = round2(total / float64(report.PricedRecords))
	}
	if rated > 0 {
		report.AverageTemperature = round2(temperatures / float64(rated))
	}
	s.logger.Debug("[insights] %d records, %d priced, %d categories, %d locations",
		len(records), report.PricedRecords, len(report.RecordsByCategory), len(report.RecordsByLocation))
	return report
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *models.InsightReport) {
	Fprint(os.Stdout, r)
}

// Fprint writes the report to w.
func Fprint(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	st := r.Stats

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 DAANGN CRAWL SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Run\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID          : %s\n", st.RunID)
	fmt.Fprintf(w, "  Elapsed         : \033[1m%s\033[0m\n", FormatElapsed(st.Elapsed))
	fmt.Fprintf(w, "  Expansion       : %s (%d cards rendered)\n", st.StopReason, st.Rendered)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Funnel\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Collected       : \033[1m%d\033[0m\n", st.Collected)
	fmt.Fprintf(w, "  Screened out    : %d\n", st.Screened)
	fmt.Fprintf(w, "  Pre-filtered    : %d\n", st.PreFiltered)
	fmt.Fprintf(w, "  Admitted        : %d\n", st.Admitted)
	fmt.Fprintf(w, "  Detail ok       : %d\n", st.DetailOK)
	fmt.Fprintf(w, "  Detail failed   : %d\n", st.DetailFailed)
	if st.Cancelled > 0 {
		fmt.Fprintf(w, "  Cancelled       : \033[1;31m%d\033[0m\n", st.Cancelled)
	}
	fmt.Fprintf(w, "  Post rejected   : %d\n", st.PostRejected)
	fmt.Fprintf(w, "  No category     : %d\n", st.PostUnresolved)
	fmt.Fprintf(w, "  Written         : \033[1;32m%d\033[0m\n", st.Written)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics (KRW)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedRecords > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%s원\033[0m\n", formatWon(int(r.AveragePrice+0.5)))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%s원\033[0m\n", formatWon(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%s원\033[0m\n", formatWon(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	if r.AverageTemperature > 0 {
		fmt.Fprintf(w, "  Avg manner temperature : %.1f°C\n", r.AverageTemperature)
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Title, 50))
		fmt.Fprintf(w, "  Location : %s\n", r.MostExpensive.Location)
		fmt.Fprintf(w, "  Price    : \033[1;31m%s\033[0m\n", r.MostExpensive.Price)
		fmt.Fprintln(w)
	}

	printCounts(w, "Records by Category", r.RecordsByCategory, thin)
	printCounts(w, "Records by Location", r.RecordsByLocation, thin)

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title string, counts map[string]int, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	var rows []keyCount
	for k, n := range counts {
		rows = append(rows, keyCount{k, n})
	}
	// Sort by count descending, then name
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	if len(rows) > 10 {
		rows = rows[:10]
	}
	for _, kc := range rows {
		bar := strings.Repeat("█", min(kc.count, 40))
		fmt.Fprintf(w, "  %-24s %s (%d)\n", truncate(kc.key, 22), bar, kc.count)
	}
	fmt.Fprintln(w)
}

// FormatElapsed renders a duration as "Xm Ys".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// formatWon adds thousands separators.
func formatWon(n int) string {
	s := fmt.Sprint(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
