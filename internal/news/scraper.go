// Package news scrapes financial headlines for the watchlist. The joined
// headline text feeds the sentiment scorer; when no provider yields
// anything the scorer degrades to neutral.
package news

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/quantfold/papertrade/internal/config"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Source describes one headline provider: a search URL with a {symbol}
// placeholder and the CSS selector matching headline nodes on the result
// page.
type Source struct {
	Name     string
	URL      string
	Selector string
}

// DefaultSources returns the built-in headline providers.
func DefaultSources() []Source {
	return []Source{
		{
			Name:     "GoogleNews",
			URL:      "https://news.google.com/search?q={symbol}+stock&hl=en-US&gl=US&ceid=US:en",
			Selector: "article h3, article h4",
		},
		{
			Name:     "YahooFinance",
			URL:      "https://finance.yahoo.com/quote/{symbol}/news",
			Selector: "h3",
		},
	}
}

type cacheEntry struct {
	text      string
	fetchedAt time.Time
}

// Scraper collects recent headlines per symbol. Results are cached so the
// scoring loop does not re-fetch on every pass.
type Scraper struct {
	logger       *logger.Logger
	sources      []Source
	timeout      time.Duration
	maxHeadlines int
	cacheTTL     time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewScraper builds a scraper over the default sources.
func NewScraper(log *logger.Logger, cfg config.NewsConfig) *Scraper {
	return NewScraperWithSources(log, cfg, DefaultSources())
}

// NewScraperWithSources builds a scraper over an explicit source list.
func NewScraperWithSources(log *logger.Logger, cfg config.NewsConfig, sources []Source) *Scraper {
	return &Scraper{
		logger:       log,
		sources:      sources,
		timeout:      cfg.Timeout,
		maxHeadlines: cfg.MaxHeadlines,
		cacheTTL:     cfg.CacheTTL,
		cache:        make(map[string]cacheEntry),
	}
}

// Headlines returns the joined recent headlines for a symbol, newest scrape
// first. Per-source failures are logged; an error is returned only when no
// source yielded anything and the cache is empty.
func (s *Scraper) Headlines(ctx context.Context, symbol string) (string, error) {
	if cached, ok := s.cached(symbol); ok {
		return cached, nil
	}

	var collected []string

	for _, source := range s.sources {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if len(collected) >= s.maxHeadlines {
			break
		}

		titles, err := s.scrape(source, symbol, s.maxHeadlines-len(collected))
		if err != nil {
			s.logger.Warn("Headline source failed",
				zap.String("source", source.Name),
				zap.String("symbol", symbol),
				zap.Error(err),
			)

			continue
		}

		collected = append(collected, titles...)
	}

	if len(collected) == 0 {
		return "", errors.Newf(errors.ErrCodeDataNotFound, "no headlines found for %s", symbol)
	}

	text := strings.Join(collected, "\n")

	s.mu.Lock()
	s.cache[symbol] = cacheEntry{text: text, fetchedAt: time.Now()}
	s.mu.Unlock()

	return text, nil
}

func (s *Scraper) cached(symbol string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[symbol]
	if !ok || time.Since(entry.fetchedAt) > s.cacheTTL {
		return "", false
	}

	return entry.text, true
}

func (s *Scraper) scrape(source Source, symbol string, limit int) ([]string, error) {
	var titles []string

	c := colly.NewCollector(colly.MaxDepth(1))
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	c.OnHTML(source.Selector, func(e *colly.HTMLElement) {
		if len(titles) >= limit {
			return
		}

		title := strings.TrimSpace(e.Text)
		if title != "" {
			titles = append(titles, title)
		}
	})

	target := strings.ReplaceAll(source.URL, "{symbol}", url.QueryEscape(symbol))

	if err := c.Visit(target); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to fetch %s", source.Name)
	}

	c.Wait()

	return titles, nil
}
