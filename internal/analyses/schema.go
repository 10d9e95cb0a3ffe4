package analyses

import (
	"encoding/json"
	"log"
	"math"
	"strconv"
	"strings"
)

// AnalysisResult is the validated shape every completed job must satisfy.
// Downstream consumers (dashboard, report download) depend on it field for
// field, so normalization repairs what it safely can and fails loudly only
// on structurally required fields.
type AnalysisResult struct {
	TotalIncome     float64           `json:"totalIncome"`
	TotalExpenses   float64           `json:"totalExpenses"`
	NetCashFlow     float64           `json:"netCashFlow"`
	Categories      CategoryBreakdown `json:"categories"`
	MonthlyTrends   []MonthlyTrend    `json:"monthlyTrends"`
	Insights        []Insight         `json:"insights"`
	Recommendations []Recommendation  `json:"recommendations"`
	Summary         string            `json:"summary"`
	Metadata        *ResultMetadata   `json:"metadata,omitempty"`
}

type CategoryBreakdown struct {
	Income   []CategoryAmount `json:"income"`
	Expenses []CategoryAmount `json:"expenses"`
}

type CategoryAmount struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type MonthlyTrend struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

type Insight struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type Recommendation struct {
	Category         string  `json:"category"`
	Suggestion       string  `json:"suggestion"`
	PotentialSavings float64 `json:"potentialSavings"`
}

// ResultMetadata is merged in by the orchestrator at completion time.
type ResultMetadata struct {
	ProcessingTimeMs  float64 `json:"processingTimeMs"`
	FilesProcessed    int     `json:"filesProcessed"`
	AnalysisTimestamp string  `json:"analysisTimestamp"`
	ModelUsed         string  `json:"modelUsed"`
	IsPlaceholderData bool    `json:"isPlaceholderData"`
}

var requiredResultFields = []string{
	"totalIncome", "totalExpenses", "categories", "insights", "recommendations", "summary",
}

// CleanResponseText strips markdown code fences and, when the text is not
// bare JSON, extracts the first balanced {...} span. Models routinely wrap
// their JSON in prose or fences.
func CleanResponseText(text string) string {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if strings.HasPrefix(cleaned, "{") {
		return cleaned
	}
	start := strings.Index(cleaned, "{")
	if start < 0 {
		return cleaned
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return cleaned[start : i+1]
				}
			}
		}
	}
	return cleaned[start:]
}

// NormalizeResult validates raw model output against the result schema. It is
// a pure function: no network, no repository, independently testable.
func NormalizeResult(raw []byte) (AnalysisResult, error) {
	var top map[string]any
	if err := json.Unmarshal(raw, &top); err != nil {
		return AnalysisResult{}, &MalformedResponseError{Err: err}
	}

	var missing []string
	for _, field := range requiredResultFields {
		if _, ok := top[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return AnalysisResult{}, &SchemaError{MissingFields: missing}
	}

	out := AnalysisResult{
		TotalIncome:   coerceAmount(top["totalIncome"], "totalIncome"),
		TotalExpenses: coerceAmount(top["totalExpenses"], "totalExpenses"),
		Summary:       coerceString(top["summary"]),
	}
	// Always recomputed; whatever the model supplied for netCashFlow is
	// ignored to keep the result internally consistent.
	out.NetCashFlow = out.TotalIncome - out.TotalExpenses

	if categories, ok := top["categories"].(map[string]any); ok {
		out.Categories.Income = coerceCategoryList(categories["income"])
		out.Categories.Expenses = coerceCategoryList(categories["expenses"])
	} else {
		out.Categories.Income = []CategoryAmount{}
		out.Categories.Expenses = []CategoryAmount{}
	}
	out.MonthlyTrends = coerceTrendList(top["monthlyTrends"])
	out.Insights = coerceInsightList(top["insights"])
	out.Recommendations = coerceRecommendationList(top["recommendations"])

	return out, nil
}

// ResultMap renders the result as the map payload stored on the job record.
func ResultMap(result AnalysisResult) map[string]any {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}
	return out
}

// coerceAmount accepts numbers and numeric strings, clamps negatives to zero,
// and falls back to zero with a warning rather than failing the analysis over
// one bad numeric field.
func coerceAmount(value any, fieldName string) float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || v < 0 {
			if math.IsNaN(v) {
				log.Printf("invalid %s value: NaN, defaulting to 0", fieldName)
				return 0
			}
			return 0
		}
		return v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && !math.IsNaN(parsed) {
			if parsed < 0 {
				return 0
			}
			return parsed
		}
	case json.Number:
		parsed, err := v.Float64()
		if err == nil {
			if parsed < 0 {
				return 0
			}
			return parsed
		}
	}
	log.Printf("invalid %s value: %v, defaulting to 0", fieldName, value)
	return 0
}

func coerceNumber(value any) float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0
		}
		return v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && !math.IsNaN(parsed) {
			return parsed
		}
	}
	return 0
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(payload)
	}
}

func coerceCategoryList(value any) []CategoryAmount {
	items, ok := value.([]any)
	if !ok {
		return []CategoryAmount{}
	}
	out := make([]CategoryAmount, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		amount := coerceNumber(entry["amount"])
		if amount < 0 {
			amount = 0
		}
		out = append(out, CategoryAmount{
			Category:   coerceString(entry["category"]),
			Amount:     amount,
			Percentage: coerceNumber(entry["percentage"]),
		})
	}
	return out
}

func coerceTrendList(value any) []MonthlyTrend {
	items, ok := value.([]any)
	if !ok {
		return []MonthlyTrend{}
	}
	out := make([]MonthlyTrend, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		income := coerceNumber(entry["income"])
		expenses := coerceNumber(entry["expenses"])
		if income < 0 {
			income = 0
		}
		if expenses < 0 {
			expenses = 0
		}
		out = append(out, MonthlyTrend{
			Month:    coerceString(entry["month"]),
			Income:   income,
			Expenses: expenses,
		})
	}
	return out
}

func coerceInsightList(value any) []Insight {
	items, ok := value.([]any)
	if !ok {
		return []Insight{}
	}
	out := make([]Insight, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Insight{
			Type:        coerceString(entry["type"]),
			Description: coerceString(entry["description"]),
			Severity:    normalizeSeverity(coerceString(entry["severity"])),
		})
	}
	return out
}

func coerceRecommendationList(value any) []Recommendation {
	items, ok := value.([]any)
	if !ok {
		return []Recommendation{}
	}
	out := make([]Recommendation, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		savings := coerceNumber(entry["potentialSavings"])
		if savings < 0 {
			savings = 0
		}
		out = append(out, Recommendation{
			Category:         coerceString(entry["category"]),
			Suggestion:       coerceString(entry["suggestion"]),
			PotentialSavings: savings,
		})
	}
	return out
}

func normalizeSeverity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "low"
	}
}
