package feature

import "PumpSentinel/internal/model"

// Cluster is a group of adjacent book levels, priced at the USD-weighted
// mean of its members.
type Cluster struct {
	Price float64
	USD   float64
}

// clusterLevels groups levels whose price stays within bucketPct of the
// cluster's first member. Levels must already be sorted by proximity to the
// reference price (bids descending, asks ascending).
func clusterLevels(levels []model.BookLevel, bucketPct float64) []Cluster {
	var out []Cluster
	var start float64
	var usd, pxUSD float64
	flush := func() {
		if usd > 0 {
			out = append(out, Cluster{Price: pxUSD / usd, USD: usd})
		}
		usd, pxUSD = 0, 0
	}
	for _, l := range levels {
		if usd == 0 {
			start = l.Price
		} else if start != 0 && abs(l.Price-start)/start > bucketPct {
			flush()
			start = l.Price
		}
		usd += l.USD()
		pxUSD += l.Price * l.USD()
	}
	flush()
	return out
}

// BidClusters merges bid levels within windowPct below price into clusters
// of bucketPct width.
func BidClusters(book model.OrderBook, price, windowPct, bucketPct float64) []Cluster {
	var in []model.BookLevel
	for _, l := range book.Bids {
		if l.Price >= price*(1-windowPct) && l.Price <= price {
			in = append(in, l)
		}
	}
	return clusterLevels(in, bucketPct)
}

// AskClusters merges ask levels within windowPct above price.
func AskClusters(book model.OrderBook, price, windowPct, bucketPct float64) []Cluster {
	var in []model.BookLevel
	for _, l := range book.Asks {
		if l.Price <= price*(1+windowPct) && l.Price >= price {
			in = append(in, l)
		}
	}
	return clusterLevels(in, bucketPct)
}

// LargestCluster returns the heaviest cluster; ok is false when empty.
func LargestCluster(clusters []Cluster) (Cluster, bool) {
	var best Cluster
	var found bool
	for _, c := range clusters {
		if c.USD > best.USD {
			best, found = c, true
		}
	}
	return best, found
}

// TotalUSD sums cluster notionals.
func TotalUSD(clusters []Cluster) float64 {
	var sum float64
	for _, c := range clusters {
		sum += c.USD
	}
	return sum
}

// MedianUSD returns the median cluster notional, 0 when empty.
func MedianUSD(clusters []Cluster) float64 {
	if len(clusters) == 0 {
		return 0
	}
	vals := make([]float64, len(clusters))
	for i, c := range clusters {
		vals[i] = c.USD
	}
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && vals[j] < vals[j-1]; j-- {
			vals[j], vals[j-1] = vals[j-1], vals[j]
		}
	}
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// DepthUSD sums bid and ask notionals within pct of price.
func DepthUSD(book model.OrderBook, price, pct float64) (bidUSD, askUSD float64) {
	for _, l := range book.Bids {
		if l.Price >= price*(1-pct) {
			bidUSD += l.USD()
		}
	}
	for _, l := range book.Asks {
		if l.Price <= price*(1+pct) {
			askUSD += l.USD()
		}
	}
	return bidUSD, askUSD
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
