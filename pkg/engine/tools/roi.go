package tools

import (
	"context"
	"math"

	"github.com/pitchline/pitchline/pkg/engine"
)

// weeksPerYear for annualizing weekly savings.
const weeksPerYear = 48

// ROICalculatorTool projects annual savings and payback for a lead.
// Pure arithmetic, no external calls: failures here are always fatal
// input errors, never retried.
type ROICalculatorTool struct{}

func NewROICalculatorTool() *ROICalculatorTool { return &ROICalculatorTool{} }

func (t *ROICalculatorTool) Name() string { return ToolROICalculator }

func (t *ROICalculatorTool) Description() string {
	return "Project annual savings, ROI multiple, and payback period from team size and time saved."
}

func (t *ROICalculatorTool) Execute(_ context.Context, input map[string]any) (any, error) {
	hoursPerWeek := numberField(input, "hours_saved_per_week")
	hourlyCost := numberField(input, "hourly_cost")
	seats := numberField(input, "seats")
	annualPrice := numberField(input, "annual_price")

	switch {
	case hoursPerWeek <= 0:
		return nil, engine.NewInvalidInputErrorWithParam("hours_saved_per_week must be > 0", "hours_saved_per_week")
	case hourlyCost <= 0:
		return nil, engine.NewInvalidInputErrorWithParam("hourly_cost must be > 0", "hourly_cost")
	case seats <= 0:
		return nil, engine.NewInvalidInputErrorWithParam("seats must be > 0", "seats")
	case annualPrice <= 0:
		return nil, engine.NewInvalidInputErrorWithParam("annual_price must be > 0", "annual_price")
	}

	annualSavings := hoursPerWeek * hourlyCost * seats * weeksPerYear
	roiMultiple := annualSavings / annualPrice
	paybackMonths := 12 / roiMultiple

	return map[string]any{
		"annual_savings": math.Round(annualSavings*100) / 100,
		"roi_multiple":   math.Round(roiMultiple*100) / 100,
		"payback_months": math.Round(paybackMonths*10) / 10,
	}, nil
}

// numberField reads a numeric input that may arrive as float64 (JSON)
// or int (in-process callers).
func numberField(input map[string]any, key string) float64 {
	switch v := input[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
