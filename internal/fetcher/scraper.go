package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ratecatalog/internal/catalog"
)

var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	amountPattern  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// ScraperOptions parameterise the HTML scraper.
type ScraperOptions struct {
	UserAgent string
	Timeout   time.Duration
}

// Scraper reads rates from an institution's public rate page using CSS
// selectors configured per target.
type Scraper struct {
	opts   ScraperOptions
	client *http.Client
	logger zerolog.Logger
}

// NewScraper constructs an HTML scraper.
func NewScraper(opts ScraperOptions, logger zerolog.Logger) *Scraper {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "ratecatalog/1.0"
	}
	return &Scraper{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "scraper").Logger(),
	}
}

// Fetch implements ObservationFetcher.
func (s *Scraper) Fetch(ctx context.Context, target Target) (*catalog.Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fetch %s: status %d: %s", target.URL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return s.extract(doc, target), nil
}

func (s *Scraper) extract(doc *goquery.Document, target Target) *catalog.Observation {
	rate, ok := parsePercent(selectText(doc, target.RateSelector))
	if !ok {
		s.logger.Warn().Str("target", target.String()).Str("selector", target.RateSelector).Msg("rate not found on page")
		return nil
	}

	obs := &catalog.Observation{
		InstitutionName: target.Institution,
		AccountType:     target.AccountType,
		Rate:            &rate,
		TermMonths:      termFor(target),
		Features:        target.Features,
		Origin:          catalog.OriginScraped,
		SourceURL:       target.URL,
	}
	if target.APYSelector != "" {
		if apy, ok := parsePercent(selectText(doc, target.APYSelector)); ok {
			obs.APY = &apy
		}
	}
	if target.MinDepositSelector != "" {
		if deposit, ok := parseAmount(selectText(doc, target.MinDepositSelector)); ok {
			obs.MinDeposit = &deposit
		}
	}

	s.logger.Debug().
		Str("target", target.String()).
		Str("rate", rate.String()).
		Msg("scraped rate")
	return obs
}

func selectText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// parsePercent extracts the first "N.NN%" figure from text.
func parsePercent(text string) (decimal.Decimal, bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseAmount extracts a currency amount such as "$1,000.00". Text that
// says there is no minimum parses as zero.
func parseAmount(text string) (decimal.Decimal, bool) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "no minimum") || strings.Contains(lower, "none") {
		return decimal.Zero, true
	}
	m := amountPattern.FindString(text)
	if m == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

var _ ObservationFetcher = (*Scraper)(nil)
