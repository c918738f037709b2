// Package analysis defines the stock-analysis domain on top of the generic
// pipeline: output contracts for stage results and the default
// analyst-then-trader pipeline that produces a Buy/Sell/Hold recommendation.
package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tickerflow/tickerflow/pkg/pipeline"
)

// Verdict is a trading recommendation.
type Verdict string

const (
	VerdictBuy  Verdict = "BUY"
	VerdictSell Verdict = "SELL"
	VerdictHold Verdict = "HOLD"
)

// Explicit "recommendation: buy" style statements win over incidental
// keyword mentions elsewhere in the text.
var explicitVerdictPattern = regexp.MustCompile(`(?im)^\s*(?:final\s+)?(?:recommendation|verdict|decision)\s*[:\-]\s*\**\s*(buy|sell|hold)\b`)

var verdictWordPattern = regexp.MustCompile(`(?i)\b(buy|sell|hold)\b`)

// ExtractVerdict finds the trading recommendation in a stage output.
// It returns false when no verdict is present.
func ExtractVerdict(text string) (Verdict, bool) {
	if m := explicitVerdictPattern.FindStringSubmatch(text); m != nil {
		return Verdict(strings.ToUpper(m[1])), true
	}
	if m := verdictWordPattern.FindStringSubmatch(text); m != nil {
		return Verdict(strings.ToUpper(m[1])), true
	}
	return "", false
}

// Contracts returns the output contract checks for analysis pipelines.
//
//   - "summary": a non-trivial analysis text.
//   - "recommendation": must contain an extractable Buy/Sell/Hold verdict
//     with supporting rationale.
func Contracts() map[string]pipeline.ContractFunc {
	return map[string]pipeline.ContractFunc{
		"summary":        checkSummary,
		"recommendation": checkRecommendation,
	}
}

const minSummaryLength = 40

func checkSummary(content string) error {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minSummaryLength {
		return fmt.Errorf("summary too short (%d characters)", len(trimmed))
	}
	return nil
}

func checkRecommendation(content string) error {
	verdict, ok := ExtractVerdict(content)
	if !ok {
		return fmt.Errorf("no Buy/Sell/Hold verdict found")
	}
	// A bare verdict with no rationale is not a recommendation.
	if len(strings.TrimSpace(content)) < len(verdict)+minSummaryLength {
		return fmt.Errorf("verdict %s lacks supporting rationale", verdict)
	}
	return nil
}
