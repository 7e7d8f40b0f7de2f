package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratecatalog/internal/catalog"
)

// JSONCompleter is the slice of the LLM client used here.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

const searchSystemPrompt = `You look up current US bank deposit rates.
Answer with a single JSON object:
{"found": bool, "rate": number, "apy": number|null, "minDeposit": number|null,
 "termMonths": number|null, "features": [string], "sourceUrl": string}
Rates are percentages (4.25 means 4.25%). Set "found" to false when you
have no reliable current figure. Never invent a rate.`

// AISearch resolves rates for targets without a scrapeable page by asking an
// OpenAI-compatible model.
type AISearch struct {
	llm    JSONCompleter
	logger zerolog.Logger
}

// NewAISearch constructs the AI search fetcher.
func NewAISearch(llm JSONCompleter, logger zerolog.Logger) *AISearch {
	return &AISearch{
		llm:    llm,
		logger: logger.With().Str("component", "ai_search").Logger(),
	}
}

type searchAnswer struct {
	Found      bool             `json:"found"`
	Rate       *decimal.Decimal `json:"rate"`
	APY        *decimal.Decimal `json:"apy"`
	MinDeposit *decimal.Decimal `json:"minDeposit"`
	TermMonths *int             `json:"termMonths"`
	Features   []string         `json:"features"`
	SourceURL  string           `json:"sourceUrl"`
}

// Fetch implements ObservationFetcher.
func (a *AISearch) Fetch(ctx context.Context, target Target) (*catalog.Observation, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Institution: %s\nAccount type: %s\n", target.Institution, target.AccountType)
	if target.AccountType == catalog.AccountCD && target.TermMonths > 0 {
		fmt.Fprintf(&prompt, "Term: %d months\n", target.TermMonths)
	}

	var answer searchAnswer
	if err := a.llm.CompleteJSON(ctx, searchSystemPrompt, prompt.String(), &answer); err != nil {
		return nil, fmt.Errorf("ai search %s: %w", target, err)
	}
	if !answer.Found || answer.Rate == nil {
		a.logger.Info().Str("target", target.String()).Msg("ai search returned no rate")
		return nil, nil
	}

	term := termFor(target)
	if term == nil && target.AccountType == catalog.AccountCD && answer.TermMonths != nil {
		term = answer.TermMonths
	}

	sourceURL := strings.TrimSpace(answer.SourceURL)
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		sourceURL = ""
	}

	features := target.Features
	if len(features) == 0 {
		features = answer.Features
	}

	return &catalog.Observation{
		InstitutionName: target.Institution,
		AccountType:     target.AccountType,
		Rate:            answer.Rate,
		APY:             answer.APY,
		MinDeposit:      answer.MinDeposit,
		TermMonths:      term,
		Features:        features,
		Origin:          catalog.OriginAPI,
		SourceURL:       sourceURL,
	}, nil
}

var _ ObservationFetcher = (*AISearch)(nil)
