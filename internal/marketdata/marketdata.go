// Package marketdata defines the inbound collaborator boundary: the shapes
// external market-data clients hand to the provenance engine. The engine
// never fetches data itself.
package marketdata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a CoinGecko-shaped market snapshot for one asset from one
// source. LastUpdated is the source's own freshness claim, not ours.
type Record struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	SourceName        string          `json:"source_name"`
	SourceURL         string          `json:"source_url,omitempty"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	TotalVolume       decimal.Decimal `json:"total_volume"`
	CirculatingSupply decimal.Decimal `json:"circulating_supply"`
	LastUpdated       time.Time       `json:"last_updated"`
}

// Observation is one source's reading of a single metric: the
// {value, timestamp, sourceName} tuple the engine validates.
type Observation struct {
	Source    string          `json:"source"`
	Type      string          `json:"type,omitempty"`
	URL       string          `json:"url,omitempty"`
	Value     decimal.Decimal `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// ObservationSet is the document a caller (UI, report generator, CLI) hands
// to a validation run: one metric, its observations, and optional rule
// context.
type ObservationSet struct {
	Metric       string          `json:"metric"`
	Observations []Observation   `json:"observations"`
	Volume       *float64        `json:"volume,omitempty"`
	Reported     decimal.Decimal `json:"reported_value,omitempty"`
}

// LoadObservationSet reads an ObservationSet document from disk.
func LoadObservationSet(path string) (ObservationSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ObservationSet{}, fmt.Errorf("read observations: %w", err)
	}
	var set ObservationSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return ObservationSet{}, fmt.Errorf("parse observations: %w", err)
	}
	if set.Metric == "" {
		return ObservationSet{}, fmt.Errorf("observations document missing metric name")
	}
	if len(set.Observations) == 0 {
		return ObservationSet{}, fmt.Errorf("observations document has no observations")
	}
	return set, nil
}

// Values extracts the numeric observation values in input order.
func (s ObservationSet) Values() []float64 {
	values := make([]float64, len(s.Observations))
	for i, obs := range s.Observations {
		values[i] = obs.Value.InexactFloat64()
	}
	return values
}
