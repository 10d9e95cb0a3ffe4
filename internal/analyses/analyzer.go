package analyses

import (
	"context"
	"fmt"
	"time"

	"statement-backend/internal/llm"
	"statement-backend/internal/retry"
	"statement-backend/internal/shared/telemetry"
)

const (
	analyzeRetryBaseDelay = 2 * time.Second
	textModeAttempts      = 3
	nativeModeAttempts    = 5
)

// Analyzer turns a set of document contents into a validated analysis result
// or a classified failure. When LLM is nil the pipeline stays exercisable:
// Analyze returns a deterministic placeholder result tagged as such.
type Analyzer struct {
	LLM     llm.Client
	Timeout time.Duration

	// MaxAttempts defaults by path: 5 when any document is sent natively
	// (inline binary), 3 for text-only requests.
	MaxAttempts int
}

// Analyze runs one analysis over the given documents.
func (a *Analyzer) Analyze(ctx context.Context, documents []llm.Document) (AnalysisResult, error) {
	if len(documents) == 0 {
		return AnalysisResult{}, fmt.Errorf("%w: no documents provided for analysis", ErrInvalidInput)
	}
	if a.LLM == nil {
		telemetry.Info("analysis.placeholder", map[string]any{
			"files": len(documents),
		})
		return placeholderResult(len(documents)), nil
	}

	req := llm.Request{
		Prompt:    llm.AnalysisPrompt,
		Documents: documents,
	}

	maxAttempts := a.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = textModeAttempts
		for _, doc := range documents {
			if len(doc.Data) > 0 {
				maxAttempts = nativeModeAttempts
				break
			}
		}
	}

	var text string
	err := retry.Do(ctx, retry.Options{
		MaxAttempts:   maxAttempts,
		BaseDelay:     analyzeRetryBaseDelay,
		IsRateLimited: llm.IsRateLimited,
	}, func() error {
		callCtx := ctx
		if a.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.Timeout)
			defer cancel()
		}
		var callErr error
		text, callErr = a.LLM.GenerateAnalysis(callCtx, req)
		return callErr
	})
	if err != nil {
		return AnalysisResult{}, err
	}

	// Parse failures are not retried here: the request already exhausted the
	// outer retry budget, and re-asking a non-deterministic model is the
	// caller's choice via a fresh job.
	cleaned := CleanResponseText(text)
	return NormalizeResult([]byte(cleaned))
}

// ModelName reports the provider model, or the placeholder tag when no
// provider is configured.
func (a *Analyzer) ModelName() string {
	if a.LLM == nil {
		return "placeholder"
	}
	return a.LLM.ModelName()
}

// placeholderResult synthesizes a deterministic demo analysis so the pipeline
// can run end-to-end without provider credentials.
func placeholderResult(fileCount int) AnalysisResult {
	const (
		estimatedIncome   = 5000.0
		estimatedExpenses = 3500.0
	)
	return AnalysisResult{
		TotalIncome:   estimatedIncome,
		TotalExpenses: estimatedExpenses,
		NetCashFlow:   estimatedIncome - estimatedExpenses,
		Categories: CategoryBreakdown{
			Income: []CategoryAmount{
				{Category: "Salary", Amount: estimatedIncome * 0.9, Percentage: 90},
				{Category: "Other Income", Amount: estimatedIncome * 0.1, Percentage: 10},
			},
			Expenses: []CategoryAmount{
				{Category: "Housing", Amount: estimatedExpenses * 0.3, Percentage: 30},
				{Category: "Food", Amount: estimatedExpenses * 0.2, Percentage: 20},
				{Category: "Transportation", Amount: estimatedExpenses * 0.15, Percentage: 15},
				{Category: "Utilities", Amount: estimatedExpenses * 0.1, Percentage: 10},
				{Category: "Entertainment", Amount: estimatedExpenses * 0.1, Percentage: 10},
				{Category: "Other", Amount: estimatedExpenses * 0.15, Percentage: 15},
			},
		},
		MonthlyTrends: []MonthlyTrend{
			{Month: "Current", Income: estimatedIncome, Expenses: estimatedExpenses},
		},
		Insights: []Insight{
			{Type: "Demo Mode", Description: "AI analysis requires a Gemini API key configuration", Severity: "low"},
			{Type: "File Processing", Description: "Files uploaded successfully and ready for analysis", Severity: "low"},
		},
		Recommendations: []Recommendation{
			{Category: "Setup", Suggestion: "Configure GEMINI_API_KEY for real AI insights", PotentialSavings: 0},
			{Category: "Analysis", Suggestion: "Upload bank statements for comprehensive analysis", PotentialSavings: 0},
		},
		Summary: fmt.Sprintf("Demo analysis completed for %d document(s). This is placeholder data. Configure GEMINI_API_KEY for real AI-powered insights.", fileCount),
		Metadata: &ResultMetadata{
			IsPlaceholderData: true,
		},
	}
}
