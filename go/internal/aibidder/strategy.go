package aibidder

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/transfermarket/go/internal/models"
)

// Action is what an agent decides to do with one auction
type Action int

const (
	ActionNone Action = iota
	ActionBid
	ActionBuyNow
)

func (a Action) String() string {
	switch a {
	case ActionBid:
		return "bid"
	case ActionBuyNow:
		return "buy_now"
	default:
		return "none"
	}
}

// Decision is a Strategy's output. Amount is set for bids only.
type Decision struct {
	Action Action
	Amount int64
}

// Strategy picks at most one action for an agent on an auction snapshot
type Strategy interface {
	Decide(a *models.Auction, budget int64) Decision
}

// RandomStrategy bids a small random raise with BidProbability and otherwise
// buys outright with BuyNowProbability when the budget allows.
type RandomStrategy struct {
	BidProbability    float64
	MaxRaise          float64
	BuyNowProbability float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed. A zero seed uses the time.
func NewRandomStrategy(cfg Config, seed int64) *RandomStrategy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomStrategy{
		BidProbability:    cfg.BidProbability,
		MaxRaise:          cfg.MaxRaise,
		BuyNowProbability: cfg.BuyNowProbability,
		rng:               rand.New(rand.NewSource(seed)),
	}
}

func (s *RandomStrategy) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *RandomStrategy) Decide(a *models.Auction, budget int64) Decision {
	minBid := a.MinimumBid()
	if budget < minBid {
		return Decision{}
	}

	if s.float() < s.BidProbability {
		amount := int64(math.Floor(float64(minBid) * (1 + s.float()*s.MaxRaise)))
		amount = min(amount, a.BuyNowPrice-1, budget)
		if beats(a, amount) {
			return Decision{Action: ActionBid, Amount: amount}
		}
		return Decision{}
	}

	if s.float() < s.BuyNowProbability && budget >= a.BuyNowPrice {
		return Decision{Action: ActionBuyNow}
	}
	return Decision{}
}

// beats reports whether amount would be accepted as the next bid on price alone.
func beats(a *models.Auction, amount int64) bool {
	if a.HasBidder() {
		return amount > a.HighestBid
	}
	return amount >= a.StartingPrice
}
