package perf

import (
	"context"
	"math"
	"sort"
	"time"
)

const (
	slowestEndpointsLimit = 10
	recentWindow          = 5 * time.Minute
	lastMinute            = time.Minute
)

type EndpointStat struct {
	Endpoint          string  `json:"endpoint"`
	AvgResponseTimeMs float64 `json:"avgResponseTime"`
	Requests          int     `json:"requests"`
}

// PerformanceStats aggregates a sample window. Rates are percentages in [0,100].
type PerformanceStats struct {
	AvgResponseTimeMs float64        `json:"avgResponseTime"`
	P95ResponseTimeMs float64        `json:"p95ResponseTime"`
	P99ResponseTimeMs float64        `json:"p99ResponseTime"`
	CacheHitRate      float64        `json:"cacheHitRate"`
	ErrorRate         float64        `json:"errorRate"`
	TotalRequests     int            `json:"totalRequests"`
	SlowestEndpoints  []EndpointStat `json:"slowestEndpoints"`
}

type RealTimeMetrics struct {
	ActiveRequests     int     `json:"activeRequests"`
	AvgResponseTimeMs  float64 `json:"avgResponseTime"` // over the last 5 minutes
	RequestsLastMinute int     `json:"requestsPerMinute"`
	CacheHitRate       float64 `json:"cacheHitRate"` // Cache Service global rate
}

// GetPerformanceStats aggregates samples with start <= timestamp <= end,
// of endpoint only when it is not empty.
func (m *Monitor) GetPerformanceStats(ctx context.Context, start, end time.Time, endpoint string) (PerformanceStats, error) {
	samples, err := m.store.Range(ctx, start, end, endpoint)
	if err != nil {
		return PerformanceStats{SlowestEndpoints: []EndpointStat{}}, err
	}
	return computeStats(samples), nil
}

func (m *Monitor) GetRealTimeMetrics(ctx context.Context) (RealTimeMetrics, error) {
	now := m.clock.Now()
	rt := RealTimeMetrics{
		ActiveRequests: m.ActiveRequests(),
		CacheHitRate:   m.cache.HitRate(),
	}

	samples, err := m.store.Range(ctx, now.Add(-recentWindow), now, "")
	if err != nil {
		return rt, err
	}

	minuteAgo := now.Add(-lastMinute)
	var sum float64
	for _, s := range samples {
		sum += s.ResponseTimeMs
		if !s.Time().Before(minuteAgo) {
			rt.RequestsLastMinute++
		}
	}
	if len(samples) > 0 {
		rt.AvgResponseTimeMs = sum / float64(len(samples))
	}
	return rt, nil
}

func computeStats(samples []Sample) PerformanceStats {
	stats := PerformanceStats{SlowestEndpoints: []EndpointStat{}}
	n := len(samples)
	if n == 0 {
		return stats
	}

	times := make([]float64, n)
	var (
		sum    float64
		hits   int
		errors int
		byEp   = make(map[string]*EndpointStat)
	)
	for i, s := range samples {
		times[i] = s.ResponseTimeMs
		sum += s.ResponseTimeMs
		if s.CacheHit {
			hits++
		}
		if s.StatusCode >= 400 {
			errors++
		}

		ep, ok := byEp[s.Endpoint]
		if !ok {
			ep = &EndpointStat{Endpoint: s.Endpoint}
			byEp[s.Endpoint] = ep
		}
		ep.Requests++
		ep.AvgResponseTimeMs += s.ResponseTimeMs // sum until divided below
	}
	sort.Float64s(times)

	stats.TotalRequests = n
	stats.AvgResponseTimeMs = sum / float64(n)
	stats.P95ResponseTimeMs = percentile(times, 0.95)
	stats.P99ResponseTimeMs = percentile(times, 0.99)
	stats.CacheHitRate = float64(hits) / float64(n) * 100
	stats.ErrorRate = float64(errors) / float64(n) * 100

	for _, ep := range byEp {
		ep.AvgResponseTimeMs /= float64(ep.Requests)
		stats.SlowestEndpoints = append(stats.SlowestEndpoints, *ep)
	}
	sort.Slice(stats.SlowestEndpoints, func(i, j int) bool {
		a, b := stats.SlowestEndpoints[i], stats.SlowestEndpoints[j]
		if a.AvgResponseTimeMs != b.AvgResponseTimeMs {
			return a.AvgResponseTimeMs > b.AvgResponseTimeMs
		}
		return a.Endpoint < b.Endpoint
	})
	if len(stats.SlowestEndpoints) > slowestEndpointsLimit {
		stats.SlowestEndpoints = stats.SlowestEndpoints[:slowestEndpointsLimit]
	}
	return stats
}

// percentile picks sorted[floor(len*p)], clamped to the last element. No interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
