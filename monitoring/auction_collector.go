package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// auctionCollectorName is the name of the MetricGroup for the
	// auctionCollector.
	auctionCollectorName = "auction"

	// auctionCount is a gauge that keeps track of the number of auctions
	// per phase.
	auctionCount = "auction_count"

	// auctionOpenOrders is a gauge that keeps track of the total number
	// of open orders across all auction books.
	auctionOpenOrders = "auction_open_orders"

	// auctionUserCount is a gauge that keeps track of the number of
	// registered users.
	auctionUserCount = "auction_user_count"

	labelPhase = "phase"

	// statsTimeout is the timeout for a single stats snapshot.
	statsTimeout = 20 * time.Second
)

// Stats is a point in time snapshot of the auction server's key figures.
type Stats struct {
	// AuctionsByPhase counts the auctions per lifecycle phase.
	AuctionsByPhase map[string]uint32

	// OpenOrders is the total number of orders across all books.
	OpenOrders uint32

	// NumUsers is the number of registered users.
	NumUsers uint64
}

// AuctionSource is the subset of the auction server the collector reads its
// snapshots from.
type AuctionSource interface {
	// AuctionStats returns a snapshot of the current key figures.
	AuctionStats(ctx context.Context) (*Stats, error)
}

// auctionCollector is a collector that keeps track of the auction server's
// key figures.
type auctionCollector struct {
	collectMx sync.Mutex

	cfg *PrometheusConfig

	g gauges
}

// newAuctionCollector makes a new auctionCollector instance.
func newAuctionCollector(cfg *PrometheusConfig) *auctionCollector {
	g := make(gauges)
	g.addGauge(
		auctionCount, "number of auctions per phase",
		[]string{labelPhase},
	)
	g.addGauge(auctionOpenOrders, "number of open orders", nil)
	g.addGauge(auctionUserCount, "number of registered users", nil)

	return &auctionCollector{
		cfg: cfg,
		g:   g,
	}
}

// Name is the name of the metric group.
//
// NOTE: Part of the MetricGroup interface.
func (c *auctionCollector) Name() string {
	return auctionCollectorName
}

// RegisterMetricFuncs registers all metrics of this collector with the
// global registry.
//
// NOTE: Part of the MetricGroup interface.
func (c *auctionCollector) RegisterMetricFuncs() error {
	return prometheus.Register(c)
}

// Describe sends the super-set of all possible descriptors of metrics
// collected by this Collector to the provided channel.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *auctionCollector) Describe(ch chan<- *prometheus.Desc) {
	c.collectMx.Lock()
	defer c.collectMx.Unlock()

	c.g.describe(ch)
}

// Collect is called by the Prometheus registry when collecting metrics.
//
// NOTE: Part of the prometheus.Collector interface.
func (c *auctionCollector) Collect(ch chan<- prometheus.Metric) {
	c.collectMx.Lock()
	defer c.collectMx.Unlock()

	ctx, cancel := context.WithTimeout(
		context.Background(), statsTimeout,
	)
	defer cancel()

	stats, err := c.cfg.AuctionSource.AuctionStats(ctx)
	if err != nil {
		log.Errorf("Unable to fetch auction stats: %v", err)
		return
	}

	c.g.reset()

	for phase, count := range stats.AuctionsByPhase {
		c.g[auctionCount].With(prometheus.Labels{
			labelPhase: phase,
		}).Set(float64(count))
	}
	c.g[auctionOpenOrders].With(prometheus.Labels{}).Set(
		float64(stats.OpenOrders),
	)
	c.g[auctionUserCount].With(prometheus.Labels{}).Set(
		float64(stats.NumUsers),
	)

	c.g.collect(ch)
}

func init() {
	metricsMtx.Lock()
	defer metricsMtx.Unlock()

	if _, ok := metricGroups[auctionCollectorName]; ok {
		panic(errRegisterGroup(auctionCollectorName))
	}

	metricGroups[auctionCollectorName] = func(cfg *PrometheusConfig) (
		MetricGroup, error) {

		return newAuctionCollector(cfg), nil
	}
}
