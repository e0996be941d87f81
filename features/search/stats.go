package search

import (
	"fmt"
	"math"
	"sort"

	"rateright/backend/features/observation"
)

// outlier filtering over log prices: with at least minOutlierSamples values,
// drop those whose modified z-score exceeds the cutoff. Log space keeps the
// filter symmetric for prices spanning orders of magnitude.
const (
	minOutlierSamples = 5
	madScale          = 0.6745
	madCutoff         = 3.5
)

// lowestPrices returns each provider's lowest valid price and the modal
// currency across those entries. One value per provider, matching the
// sample-size contract.
func lowestPrices(providers []observation.PricedProvider) ([]float64, string) {
	var (
		prices     []float64
		currencies = make(map[string]int)
	)
	for _, pp := range providers {
		lowest := 0.0
		currency := ""
		for _, o := range pp.Observations {
			if o.Price <= 0 {
				continue
			}
			if lowest == 0 || o.Price < lowest {
				lowest = o.Price
				currency = o.Currency
			}
		}
		if lowest > 0 {
			prices = append(prices, lowest)
			currencies[currency]++
		}
	}

	modal := ""
	best := 0
	for c, n := range currencies {
		if n > best || (n == best && c < modal) {
			modal = c
			best = n
		}
	}
	return prices, modal
}

func filterOutliers(prices []float64) []float64 {
	if len(prices) < minOutlierSamples {
		return prices
	}

	logs := make([]float64, len(prices))
	for i, p := range prices {
		logs[i] = math.Log(p)
	}
	med := median(logs)

	devs := make([]float64, len(logs))
	for i, l := range logs {
		devs[i] = math.Abs(l - med)
	}
	mad := median(devs)
	if mad == 0 {
		return prices
	}

	kept := prices[:0:0]
	for i, p := range prices {
		if madScale*devs[i]/mad <= madCutoff {
			kept = append(kept, p)
		}
	}
	return kept
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// ComputeStats derives PriceStats from the lowest valid price per provider,
// after outlier filtering. Nil when no provider carries a price.
func ComputeStats(providers []observation.PricedProvider) *PriceStats {
	prices, currency := lowestPrices(providers)
	prices = filterOutliers(prices)
	if len(prices) == 0 {
		return nil
	}

	minP, maxP, sum := prices[0], prices[0], 0.0
	for _, p := range prices {
		if p < minP {
			minP = p
		}
		if p > maxP {
			maxP = p
		}
		sum += p
	}
	return &PriceStats{
		MinPrice:    minP,
		AvgPrice:    sum / float64(len(prices)),
		MaxPrice:    maxP,
		MedianPrice: median(prices),
		Currency:    currency,
		SampleSize:  len(prices),
	}
}

// Classify labels one provider's lowest price against the distribution.
// Exhaustive over price > 0: every input gets exactly one label.
func Classify(price float64, stats *PriceStats) *Callout {
	if stats == nil || price <= 0 {
		return nil
	}
	if price <= stats.MinPrice {
		return &Callout{Label: CalloutBest}
	}

	ratio := price / stats.AvgPrice
	switch {
	case ratio <= 0.7:
		return &Callout{Label: CalloutBelowAvg, Ratio: ratio}
	case ratio >= 2.0:
		return &Callout{
			Label:  CalloutAboveAvg,
			Ratio:  ratio,
			Detail: fmt.Sprintf("%.1fx the local average", ratio),
		}
	case ratio > 1.3:
		return &Callout{
			Label:  CalloutAboveAvg,
			Ratio:  ratio,
			Detail: fmt.Sprintf("%d%% above the local average", int(math.Round((ratio-1)*100))),
		}
	default:
		return &Callout{Label: CalloutNearAvg, Ratio: ratio}
	}
}
