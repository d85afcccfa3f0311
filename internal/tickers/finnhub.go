package tickers

import (
	"context"
	"fmt"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/store"
)

// FinnhubSource serves the active ticker universe from the Finnhub
// symbol directory for one exchange.
type FinnhubSource struct {
	client   *finnhub.DefaultApiService
	exchange string
}

var _ store.TickerStore = (*FinnhubSource)(nil)

// NewFinnhubSource creates a ticker source for the given exchange.
func NewFinnhubSource(apiKey, exchange string) *FinnhubSource {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	return &FinnhubSource{
		client:   finnhub.NewAPIClient(cfg).DefaultApi,
		exchange: exchange,
	}
}

// ActiveSymbols fetches the exchange's symbol directory.
func (s *FinnhubSource) ActiveSymbols(ctx context.Context) ([]string, error) {
	res, _, err := s.client.StockSymbols(ctx).Exchange(s.exchange).Execute()
	if err != nil {
		return nil, fmt.Errorf("finnhub symbol directory fetch failed: %w", err)
	}

	symbols := make([]string, 0, len(res))
	for _, entry := range res {
		if entry.Symbol == nil || *entry.Symbol == "" {
			continue
		}
		symbols = append(symbols, *entry.Symbol)
	}

	logrus.WithFields(logrus.Fields{
		"exchange": s.exchange,
		"symbols":  len(symbols),
	}).Info("Fetched ticker universe from Finnhub")

	return symbols, nil
}
