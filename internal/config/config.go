package config

import "fmt"

// Engine holds the tuning knobs for the sync engine. Values are injected by
// the embedding application; there is no ambient or environment-driven state.
type Engine struct {
	// CatchUpMaxPages bounds the extended catch-up loop.
	CatchUpMaxPages int
	// CatchUpBudget caps how many statuses one catch-up merge may introduce.
	CatchUpBudget int
	// FullPageThreshold is the page size at or above which a fetched window
	// is treated as full, meaning more statuses may be missing behind it.
	FullPageThreshold int
	// NextPageThreshold is the page size below which backward pagination is
	// considered exhausted.
	NextPageThreshold int
	// TrimSafeOffset is how many entries past the last on-screen status are
	// kept when trimming the tail.
	TrimSafeOffset int
	// Streaming enables live event ingestion for timelines that have a
	// stream.
	Streaming bool
	// ExtendedCatchUp enables the multi-page catch-up loop for timelines
	// that support forward pagination. When disabled, a full catch-up window
	// produces a gap instead.
	ExtendedCatchUp bool
	// CatchUpInterval is the period of the background catch-up ticker, in
	// seconds. Zero disables periodic catch-up.
	CatchUpInterval int
}

func Defaults() Engine {
	return Engine{
		CatchUpMaxPages:   20,
		CatchUpBudget:     800,
		FullPageThreshold: 40,
		NextPageThreshold: 20,
		TrimSafeOffset:    15,
		Streaming:         true,
		ExtendedCatchUp:   true,
		CatchUpInterval:   90,
	}
}

func (e Engine) Validate() error {
	if e.CatchUpMaxPages < 1 {
		return fmt.Errorf("CatchUpMaxPages must be positive: %d", e.CatchUpMaxPages)
	}
	if e.CatchUpBudget < 1 {
		return fmt.Errorf("CatchUpBudget must be positive: %d", e.CatchUpBudget)
	}
	if e.FullPageThreshold < 1 {
		return fmt.Errorf("FullPageThreshold must be positive: %d", e.FullPageThreshold)
	}
	if e.NextPageThreshold < 1 {
		return fmt.Errorf("NextPageThreshold must be positive: %d", e.NextPageThreshold)
	}
	if e.TrimSafeOffset < 0 {
		return fmt.Errorf("TrimSafeOffset must not be negative: %d", e.TrimSafeOffset)
	}
	if e.CatchUpInterval < 0 {
		return fmt.Errorf("CatchUpInterval must not be negative: %d", e.CatchUpInterval)
	}
	return nil
}
