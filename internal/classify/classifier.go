// Package classify maps free-text transaction error messages onto the fixed
// failure taxonomy. Matching is pure string work with no I/O or shared state,
// so everything here is safe for concurrent callers.
package classify

import (
	"strings"

	"txguardmon/internal/model"
)

type rule struct {
	phrase string
	target model.FailureType
}

// ruleTable is matched top to bottom against the lower-cased input; the first
// phrase contained in the input wins. Order encodes precedence and is a
// versioned constant: append or reorder deliberately, never sort.
var ruleTable = []rule{
	{"slippage tolerance exceeded", model.FailureSlippageExceeded},
	{"slippage exceeded", model.FailureSlippageExceeded},
	{"exceeds desired slippage limit", model.FailureSlippageExceeded},
	{"price impact too high", model.FailureSlippageExceeded},
	{"price moved", model.FailureSlippageExceeded},
	{"insufficient liquidity", model.FailureInsufficientLiquidity},
	{"not enough liquidity", model.FailureInsufficientLiquidity},
	{"liquidity too low", model.FailureInsufficientLiquidity},
	{"pool exhausted", model.FailureInsufficientLiquidity},
	{"mev detected", model.FailureMevDetected},
	{"sandwich attack", model.FailureMevDetected},
	{"frontrun detected", model.FailureMevDetected},
	{"transaction dropped", model.FailureDroppedTx},
	{"dropped from mempool", model.FailureDroppedTx},
	{"blockhash not found", model.FailureDroppedTx},
	{"block height exceeded", model.FailureDroppedTx},
	{"transaction expired", model.FailureDroppedTx},
	{"insufficient funds", model.FailureInsufficientFunds},
	{"insufficient balance", model.FailureInsufficientFunds},
	{"insufficient lamports", model.FailureInsufficientFunds},
	{"debit an account but found no record of a prior credit", model.FailureInsufficientFunds},
}

// signalKeywords mark phrases that carry enough signal on their own to score a
// mid-string match at 0.7 instead of 0.6.
var signalKeywords = []string{"insufficient", "slippage", "liquidity", "funds", "dropped", "mev"}

type fallbackRule struct {
	keywords []string
	target   model.FailureType
}

// fallbackTable is evaluated in order when no phrase rule matched; each rule
// fires if any of its keywords appears in the input.
var fallbackTable = []fallbackRule{
	{[]string{"slippage", "price"}, model.FailureSlippageExceeded},
	{[]string{"liquidity", "pool"}, model.FailureInsufficientLiquidity},
	{[]string{"mev", "sandwich", "frontrun"}, model.FailureMevDetected},
	{[]string{"not found", "expired", "old"}, model.FailureDroppedTx},
	{[]string{"insufficient", "funds", "balance"}, model.FailureInsufficientFunds},
}

// Classify maps an error message to a failure type with a confidence score.
// Empty input yields {Other, 0}; input matching nothing yields {Other, 0.1}.
func Classify(input string) model.FailureClassification {
	if strings.TrimSpace(input) == "" {
		return model.FailureClassification{Type: model.FailureOther, Confidence: 0, OriginalInput: input}
	}

	lowered := strings.ToLower(input)

	for _, r := range ruleTable {
		if strings.Contains(lowered, r.phrase) {
			return model.FailureClassification{
				Type:          r.target,
				Confidence:    phraseConfidence(lowered, r.phrase),
				OriginalInput: input,
			}
		}
	}

	for _, r := range fallbackTable {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return model.FailureClassification{Type: r.target, Confidence: 0.5, OriginalInput: input}
			}
		}
	}

	return model.FailureClassification{Type: model.FailureOther, Confidence: 0.1, OriginalInput: input}
}

func phraseConfidence(lowered, phrase string) float64 {
	switch {
	case lowered == phrase:
		return 1.0
	case strings.HasPrefix(lowered, phrase):
		return 0.9
	case strings.HasSuffix(lowered, phrase):
		return 0.8
	}
	for _, kw := range signalKeywords {
		if strings.Contains(phrase, kw) {
			return 0.7
		}
	}
	return 0.6
}

// ClassifyBatch applies Classify element-wise, preserving input order.
func ClassifyBatch(inputs []string) []model.FailureClassification {
	out := make([]model.FailureClassification, len(inputs))
	for i, input := range inputs {
		out[i] = Classify(input)
	}
	return out
}

// Summarize counts classifications per category. Every category is present in
// the result, seeded at zero.
func Summarize(classifications []model.FailureClassification) map[model.FailureType]int {
	counts := make(map[model.FailureType]int, model.NumFailureTypes)
	for _, ft := range model.FailureTypes {
		counts[ft] = 0
	}
	for _, c := range classifications {
		counts[c.Type]++
	}
	return counts
}
