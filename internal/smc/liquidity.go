// liquidity.go builds and maintains liquidity pools and detects sweeps.
//
// Pools are rebuilt every analysis cycle from the previous session's
// extremes, the previous trading day's extremes, and recent swings. The
// pool key is a pure function of (type, price, anchor timestamp), so a
// rebuilt pool with the same key inherits the old pool's swept state —
// rebuilding must never forget a sweep.
package smc

import (
	"fmt"
	"sort"
	"time"

	"smc-trader/internal/config"
	"smc-trader/pkg/types"
)

// PoolType names the origin of a liquidity level.
type PoolType string

const (
	PoolSessionHigh PoolType = "SESSION_HIGH"
	PoolSessionLow  PoolType = "SESSION_LOW"
	PoolDailyHigh   PoolType = "DAILY_HIGH"
	PoolDailyLow    PoolType = "DAILY_LOW"
	PoolSwingHigh   PoolType = "SWING_HIGH"
	PoolSwingLow    PoolType = "SWING_LOW"
)

// IsHigh reports whether the pool sits above price action.
func (t PoolType) IsHigh() bool {
	return t == PoolSessionHigh || t == PoolDailyHigh || t == PoolSwingHigh
}

// Pool is one resting-liquidity level.
type Pool struct {
	Key            string
	Type           PoolType
	Price          float64
	Anchor         int64 // anchoring bar/session timestamp, unix millis
	Source         string
	Priority       int // 1 = session, 2 = daily, 3 = swing
	CreatedAt      time.Time
	Swept          bool
	SweptAt        time.Time
	SweptCandle    int64 // M15 bar timestamp that confirmed the sweep
	SweepDirection types.Side
}

// Expired reports whether the pool outlived its TTL.
func (p *Pool) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

// PoolKey derives the stable identity of a pool. Price is fixed to 5
// decimals so float noise cannot split one level into two keys.
func PoolKey(t PoolType, price float64, anchor int64) string {
	return fmt.Sprintf("%s:%.5f:%d", t, price, anchor)
}

// LiquidityEngine owns the pool set for one symbol.
type LiquidityEngine struct {
	cfg   config.SMCConfig
	pools map[string]*Pool
}

// NewLiquidityEngine creates an empty pool set.
func NewLiquidityEngine(cfg config.SMCConfig) *LiquidityEngine {
	return &LiquidityEngine{cfg: cfg, pools: make(map[string]*Pool)}
}

// BuildPools rebuilds the pool set from the current structure inputs.
// Pools whose key matches an existing pool inherit its swept state; pools
// past their TTL are dropped; everything else is replaced.
func (e *LiquidityEngine) BuildPools(prev SessionSnapshot, dayHigh, dayLow float64, dayAnchor time.Time, swings []Swing, now time.Time) []*Pool {
	fresh := make(map[string]*Pool)

	add := func(p *Pool) {
		if old, ok := e.pools[p.Key]; ok {
			p.CreatedAt = old.CreatedAt
			if old.Swept {
				p.Swept = true
				p.SweptAt = old.SweptAt
				p.SweptCandle = old.SweptCandle
				p.SweepDirection = old.SweepDirection
			}
		}
		if p.Expired(now, e.cfg.PoolTTL) {
			return
		}
		fresh[p.Key] = p
	}

	if prev.CandleCount > 0 {
		anchor := prev.StartTime.UnixMilli()
		add(&Pool{
			Key: PoolKey(PoolSessionHigh, prev.High, anchor), Type: PoolSessionHigh,
			Price: prev.High, Anchor: anchor, Source: string(prev.Type),
			Priority: 1, CreatedAt: now,
		})
		add(&Pool{
			Key: PoolKey(PoolSessionLow, prev.Low, anchor), Type: PoolSessionLow,
			Price: prev.Low, Anchor: anchor, Source: string(prev.Type),
			Priority: 1, CreatedAt: now,
		})
	}

	if dayHigh > 0 && dayLow > 0 {
		anchor := dayAnchor.UnixMilli()
		add(&Pool{
			Key: PoolKey(PoolDailyHigh, dayHigh, anchor), Type: PoolDailyHigh,
			Price: dayHigh, Anchor: anchor, Source: "previous_day",
			Priority: 2, CreatedAt: now,
		})
		add(&Pool{
			Key: PoolKey(PoolDailyLow, dayLow, anchor), Type: PoolDailyLow,
			Price: dayLow, Anchor: anchor, Source: "previous_day",
			Priority: 2, CreatedAt: now,
		})
	}

	for _, s := range swings {
		pt := PoolSwingHigh
		if s.Kind == SwingLow {
			pt = PoolSwingLow
		}
		add(&Pool{
			Key: PoolKey(pt, s.Price, s.Timestamp), Type: pt,
			Price: s.Price, Anchor: s.Timestamp, Source: "swing",
			Priority: 3, CreatedAt: now,
		})
	}

	e.pools = fresh
	return e.Pools()
}

// Pools returns the current pool set, highest priority first.
func (e *LiquidityEngine) Pools() []*Pool {
	out := make([]*Pool, 0, len(e.pools))
	for _, p := range e.pools {
		out = append(out, p)
	}
	sortPools(out)
	return out
}

func sortPools(pools []*Pool) {
	sort.Slice(pools, func(i, j int) bool {
		if pools[i].Priority != pools[j].Priority {
			return pools[i].Priority < pools[j].Priority
		}
		return pools[i].Key < pools[j].Key
	})
}

// DetectSweeps checks the given CLOSED M15 bars against unswept pools and
// marks sweeps: for a HIGH pool the bar wicks above the level but closes
// back below it, symmetric for LOW pools. Returns pools newly swept by
// this batch, best priority first. Swept is monotonic; a later bar can
// never unsweep a pool.
func (e *LiquidityEngine) DetectSweeps(closedM15 []types.Bar) []*Pool {
	var swept []*Pool
	for _, bar := range closedM15 {
		barTime := time.UnixMilli(bar.Timestamp).UTC()
		for _, p := range e.pools {
			if p.Swept {
				continue
			}
			if p.Type.IsHigh() {
				if bar.High > p.Price && bar.Close < p.Price {
					p.Swept = true
					p.SweptAt = barTime
					p.SweptCandle = bar.Timestamp
					p.SweepDirection = types.SELL
					swept = append(swept, p)
				}
			} else {
				if bar.Low < p.Price && bar.Close > p.Price {
					p.Swept = true
					p.SweptAt = barTime
					p.SweptCandle = bar.Timestamp
					p.SweepDirection = types.BUY
					swept = append(swept, p)
				}
			}
		}
	}
	sortPools(swept)
	return swept
}
