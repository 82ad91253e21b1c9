package app

import (
	"fmt"
	"strings"
	"time"
)

// Fairness selects how a cascade pass treats entries it cannot satisfy.
type Fairness int

const (
	// FairnessSkip leaves an unsatisfiable entry waiting and keeps scanning,
	// so later, smaller entries may be served first.
	FairnessSkip Fairness = iota
	// FairnessStrictFIFO stops the pass at the first unsatisfiable entry.
	FairnessStrictFIFO
)

func (f Fairness) String() string {
	if f == FairnessStrictFIFO {
		return "strict"
	}
	return "skip"
}

// ParseFairness accepts "skip" or "strict".
func ParseFairness(s string) (Fairness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return FairnessSkip, nil
	case "strict", "fifo":
		return FairnessStrictFIFO, nil
	default:
		return FairnessSkip, fmt.Errorf("unknown waitlist fairness %q", s)
	}
}

// WaitlistPolicy configures offers extended to waitlist entries.
type WaitlistPolicy struct {
	OfferWindow time.Duration
	// MaxMissedOffers is how many offers an entry may let lapse before it is
	// dropped. Below the limit a lapsed entry goes back to the end of the queue.
	MaxMissedOffers int
	Fairness        Fairness
}

const (
	defaultOfferWindow     = 10 * time.Minute
	defaultMaxMissedOffers = 1
)

// DefaultWaitlistPolicy drops an entry after its first missed offer.
func DefaultWaitlistPolicy() WaitlistPolicy {
	return WaitlistPolicy{
		OfferWindow:     defaultOfferWindow,
		MaxMissedOffers: defaultMaxMissedOffers,
		Fairness:        FairnessSkip,
	}
}

func (p WaitlistPolicy) normalized() WaitlistPolicy {
	if p.OfferWindow <= 0 {
		p.OfferWindow = defaultOfferWindow
	}
	if p.MaxMissedOffers <= 0 {
		p.MaxMissedOffers = defaultMaxMissedOffers
	}
	return p
}
