// Package reports renders completed analysis results as a plain-text
// statement report for download.
package reports

import (
	"fmt"
	"sort"
	"strings"
)

// Render produces a deterministic text report from a stored analysis result
// map. Unknown or missing fields render as zero values so a partially shaped
// result still yields a usable document.
func Render(title string, result map[string]any) string {
	var b strings.Builder

	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	fmt.Fprintf(&b, "Total Income:    %.2f\n", number(result, "totalIncome"))
	fmt.Fprintf(&b, "Total Expenses:  %.2f\n", number(result, "totalExpenses"))
	fmt.Fprintf(&b, "Net Cash Flow:   %.2f\n\n", number(result, "netCashFlow"))

	if summary, ok := result["summary"].(string); ok && summary != "" {
		b.WriteString("Summary\n-------\n")
		b.WriteString(summary + "\n\n")
	}

	writeCategories(&b, result)
	writeTrends(&b, result)
	writeInsights(&b, result)
	writeRecommendations(&b, result)

	if meta, ok := result["metadata"].(map[string]any); ok {
		if placeholder, ok := meta["isPlaceholderData"].(bool); ok && placeholder {
			b.WriteString("Note: generated without an analysis provider; figures are illustrative.\n")
		}
	}

	return b.String()
}

func writeCategories(b *strings.Builder, result map[string]any) {
	categories, ok := result["categories"].(map[string]any)
	if !ok {
		return
	}
	writeSection(b, categories, "income", "Income Categories")
	writeSection(b, categories, "expenses", "Expense Categories")
}

func writeSection(b *strings.Builder, categories map[string]any, key, heading string) {
	items := listOfMaps(categories[key])
	if len(items) == 0 {
		return
	}
	// Alphabetical for a stable rendering independent of provider ordering.
	sort.SliceStable(items, func(i, j int) bool {
		return stringField(items[i], "category") < stringField(items[j], "category")
	})
	b.WriteString(heading + "\n" + strings.Repeat("-", len(heading)) + "\n")
	for _, item := range items {
		fmt.Fprintf(b, "  %-24s %12.2f  (%.1f%%)\n",
			stringField(item, "category"),
			numberField(item, "amount"),
			numberField(item, "percentage"))
	}
	b.WriteString("\n")
}

func writeTrends(b *strings.Builder, result map[string]any) {
	trends := listOfMaps(result["monthlyTrends"])
	if len(trends) == 0 {
		return
	}
	b.WriteString("Monthly Trends\n--------------\n")
	for _, trend := range trends {
		fmt.Fprintf(b, "  %-12s income %12.2f  expenses %12.2f\n",
			stringField(trend, "month"),
			numberField(trend, "income"),
			numberField(trend, "expenses"))
	}
	b.WriteString("\n")
}

func writeInsights(b *strings.Builder, result map[string]any) {
	items := listOfMaps(result["insights"])
	if len(items) == 0 {
		return
	}
	b.WriteString("Insights\n--------\n")
	for _, item := range items {
		line := stringField(item, "description")
		if t := stringField(item, "type"); t != "" {
			line = t + ": " + line
		}
		if severity := stringField(item, "severity"); severity != "" {
			line += " [" + severity + "]"
		}
		fmt.Fprintf(b, "  * %s\n", line)
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, result map[string]any) {
	items := listOfMaps(result["recommendations"])
	if len(items) == 0 {
		return
	}
	b.WriteString("Recommendations\n---------------\n")
	for _, item := range items {
		line := stringField(item, "suggestion")
		if category := stringField(item, "category"); category != "" {
			line = category + ": " + line
		}
		if savings := numberField(item, "potentialSavings"); savings > 0 {
			line += fmt.Sprintf(" (potential savings %.2f)", savings)
		}
		fmt.Fprintf(b, "  * %s\n", line)
	}
	b.WriteString("\n")
}

func listOfMaps(value any) []map[string]any {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

func number(m map[string]any, key string) float64 {
	return numberField(m, key)
}

func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
