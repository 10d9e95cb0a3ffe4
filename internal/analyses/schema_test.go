package analyses

import (
	"errors"
	"strings"
	"testing"
)

const validResponse = `{
	"totalIncome": 5200.50,
	"totalExpenses": 3100.25,
	"netCashFlow": 999999,
	"categories": {
		"income": [{"category": "Salary", "amount": 5200.50, "percentage": 100}],
		"expenses": [{"category": "Housing", "amount": 1500, "percentage": 48.4}]
	},
	"monthlyTrends": [{"month": "2026-07", "income": 5200.50, "expenses": 3100.25}],
	"insights": [{"type": "Spending", "description": "Housing dominates expenses", "severity": "HIGH"}],
	"recommendations": [{"category": "Housing", "suggestion": "Review rent", "potentialSavings": 200}],
	"summary": "Healthy month."
}`

func TestNormalizeResultRecomputesNetCashFlow(t *testing.T) {
	result, err := NormalizeResult([]byte(validResponse))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := result.TotalIncome - result.TotalExpenses
	if result.NetCashFlow != want {
		t.Fatalf("netCashFlow = %v, want recomputed %v", result.NetCashFlow, want)
	}
	if result.NetCashFlow == 999999 {
		t.Fatal("model-supplied netCashFlow must be ignored")
	}
}

func TestNormalizeResultNormalizesSeverity(t *testing.T) {
	result, err := NormalizeResult([]byte(validResponse))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(result.Insights) != 1 || result.Insights[0].Severity != "high" {
		t.Fatalf("severity not normalized: %+v", result.Insights)
	}
}

func TestNormalizeResultMissingFields(t *testing.T) {
	_, err := NormalizeResult([]byte(`{"totalIncome": 100, "summary": "x"}`))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	for _, want := range []string{"totalExpenses", "categories", "insights", "recommendations"} {
		found := false
		for _, field := range schemaErr.MissingFields {
			if field == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing fields %v should include %s", schemaErr.MissingFields, want)
		}
	}
}

func TestNormalizeResultMalformedJSON(t *testing.T) {
	_, err := NormalizeResult([]byte("not json at all"))
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestNormalizeResultCoercesNumericStrings(t *testing.T) {
	raw := strings.Replace(validResponse, `"totalIncome": 5200.50`, `"totalIncome": "5200.50"`, 1)
	result, err := NormalizeResult([]byte(raw))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if result.TotalIncome != 5200.50 {
		t.Fatalf("totalIncome = %v, want 5200.50 from string", result.TotalIncome)
	}
}

func TestNormalizeResultClampsNegatives(t *testing.T) {
	raw := strings.Replace(validResponse, `"totalExpenses": 3100.25`, `"totalExpenses": -3100.25`, 1)
	result, err := NormalizeResult([]byte(raw))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if result.TotalExpenses != 0 {
		t.Fatalf("negative totalExpenses should clamp to 0, got %v", result.TotalExpenses)
	}
	if result.NetCashFlow != result.TotalIncome {
		t.Fatalf("netCashFlow should be recomputed after clamping, got %v", result.NetCashFlow)
	}
}

func TestNormalizeResultDefaultsLists(t *testing.T) {
	raw := `{
		"totalIncome": 10,
		"totalExpenses": 5,
		"categories": {},
		"insights": "not a list",
		"recommendations": null,
		"summary": "s"
	}`
	result, err := NormalizeResult([]byte(raw))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if result.Categories.Income == nil || result.Categories.Expenses == nil {
		t.Fatal("category lists must default to empty, not nil")
	}
	if result.Insights == nil || result.Recommendations == nil || result.MonthlyTrends == nil {
		t.Fatal("lists must default to empty, not nil")
	}
	if len(result.Insights) != 0 {
		t.Fatalf("malformed insights should be dropped, got %v", result.Insights)
	}
}

func TestCleanResponseTextStripsFences(t *testing.T) {
	wrapped := "```json\n{\"a\": 1}\n```"
	if got := CleanResponseText(wrapped); got != `{"a": 1}` {
		t.Fatalf("got %q", got)
	}
}

func TestCleanResponseTextExtractsBalancedObject(t *testing.T) {
	text := `Here is the analysis you asked for: {"a": {"b": "}"}, "c": 2} hope it helps`
	if got := CleanResponseText(text); got != `{"a": {"b": "}"}, "c": 2}` {
		t.Fatalf("got %q", got)
	}
}

func TestCleanResponseTextNoObject(t *testing.T) {
	if got := CleanResponseText("no json here"); got != "no json here" {
		t.Fatalf("got %q", got)
	}
}

func TestClassifyFailureCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"schema", &SchemaError{MissingFields: []string{"summary"}}, ErrorCodeLLMSchema},
		{"malformed", &MalformedResponseError{}, ErrorCodeLLMMalformed},
		{"validation", ErrInvalidInput, ErrorCodeValidation},
		{"unknown", errors.New("boom"), ErrorCodeInternal},
		{"storage", errors.New("load document x: open failed"), ErrorCodeStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFailure(tt.err); got != tt.want {
				t.Fatalf("classifyFailure(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestSanitizeErrorStripsNewlinesAndTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	msg := sanitizeError(errors.New("line1\nline2\r" + long))
	if strings.ContainsAny(msg, "\n\r") {
		t.Fatal("sanitized message still contains newlines")
	}
	if len(msg) > 500 {
		t.Fatalf("sanitized message too long: %d", len(msg))
	}
}
