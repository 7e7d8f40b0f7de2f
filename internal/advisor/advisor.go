package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"ratecatalog/internal/catalog"
)

// Advisor orders ranking candidates. Implementations may be remote and
// unreliable; callers fall back to catalog.Rank on any error.
type Advisor interface {
	Order(ctx context.Context, accountType catalog.AccountType, prefs catalog.Preferences, candidates []catalog.Record) ([]catalog.Recommendation, error)
}

// JSONCompleter is the slice of the LLM client used by OpenAI.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

const rankSystemPrompt = `You recommend US bank deposit accounts.
You receive numbered candidates and the user's preferences. Pick the best
matches and answer with one JSON object:
{"picks": [{"index": number, "score": number, "reasoning": string}]}
Scores are 0-100. Reasoning is one short sentence. Only use the given
candidates; never invent accounts.`

// OpenAI asks a chat model to order candidates.
type OpenAI struct {
	llm    JSONCompleter
	topN   int
	logger zerolog.Logger
}

// NewOpenAI constructs the model-backed advisor.
func NewOpenAI(llm JSONCompleter, topN int, logger zerolog.Logger) *OpenAI {
	if topN <= 0 {
		topN = catalog.DefaultTopN
	}
	return &OpenAI{
		llm:    llm,
		topN:   topN,
		logger: logger.With().Str("component", "ai_advisor").Logger(),
	}
}

type rankAnswer struct {
	Picks []struct {
		Index     int     `json:"index"`
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	} `json:"picks"`
}

type candidateView struct {
	Index         int      `json:"index"`
	Institution   string   `json:"institution"`
	APY           string   `json:"apy"`
	MinDeposit    string   `json:"minDeposit"`
	TermMonths    *int     `json:"termMonths,omitempty"`
	Features      []string `json:"features,omitempty"`
	Scope         string   `json:"scope"`
	Verifications int      `json:"verifications"`
	Reports       int      `json:"reports"`
}

// Order implements Advisor. Every failure is reported as
// catalog.ErrUpstreamUnavailable.
func (o *OpenAI) Order(ctx context.Context, accountType catalog.AccountType, prefs catalog.Preferences, candidates []catalog.Record) ([]catalog.Recommendation, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(accountType, prefs, candidates)
	if err != nil {
		return nil, err
	}

	var answer rankAnswer
	if err := o.llm.CompleteJSON(ctx, rankSystemPrompt, prompt, &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUpstreamUnavailable, err)
	}

	recs, err := o.toRecommendations(answer, candidates)
	if err != nil {
		o.logger.Warn().Err(err).Msg("discarding advisor output")
		return nil, fmt.Errorf("%w: %v", catalog.ErrUpstreamUnavailable, err)
	}
	return recs, nil
}

func (o *OpenAI) toRecommendations(answer rankAnswer, candidates []catalog.Record) ([]catalog.Recommendation, error) {
	if len(answer.Picks) == 0 {
		return nil, errors.New("advisor returned no picks")
	}

	seen := make(map[int]bool, len(answer.Picks))
	recs := make([]catalog.Recommendation, 0, o.topN)
	for _, p := range answer.Picks {
		if p.Index < 0 || p.Index >= len(candidates) {
			return nil, fmt.Errorf("pick index %d out of range", p.Index)
		}
		if seen[p.Index] {
			continue
		}
		seen[p.Index] = true

		reasoning := strings.TrimSpace(p.Reasoning)
		if reasoning == "" {
			reasoning = catalog.Reasoning(candidates[p.Index], catalog.Preferences{})
		}
		recs = append(recs, catalog.Recommendation{
			Record:    candidates[p.Index],
			Score:     math.Max(0, math.Min(100, p.Score)),
			Reasoning: reasoning,
		})
		if len(recs) == o.topN {
			break
		}
	}
	return recs, nil
}

func buildPrompt(accountType catalog.AccountType, prefs catalog.Preferences, candidates []catalog.Record) (string, error) {
	views := make([]candidateView, 0, len(candidates))
	for i, r := range candidates {
		views = append(views, candidateView{
			Index:         i,
			Institution:   r.InstitutionName,
			APY:           r.APY.String(),
			MinDeposit:    r.MinDeposit.String(),
			TermMonths:    r.TermMonths,
			Features:      r.Features,
			Scope:         string(r.AvailabilityScope),
			Verifications: r.VerificationCount,
			Reports:       r.ReportCount,
		})
	}
	raw, err := json.Marshal(views)
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Account type: %s\n", accountType)
	if prefs.MinRate != nil {
		fmt.Fprintf(&b, "Minimum APY: %s%%\n", prefs.MinRate.String())
	}
	if prefs.MaxMinDeposit != nil {
		fmt.Fprintf(&b, "Deposit budget: $%s\n", prefs.MaxMinDeposit.String())
	}
	if len(prefs.PreferredFeatures) > 0 {
		fmt.Fprintf(&b, "Wanted features: %s\n", strings.Join(prefs.PreferredFeatures, ", "))
	}
	if prefs.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", prefs.Location)
	}
	fmt.Fprintf(&b, "Candidates: %s\n", raw)
	return b.String(), nil
}

var _ Advisor = (*OpenAI)(nil)
