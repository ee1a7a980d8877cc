package models

// DrawOutcomeID is the draw selection on the primary match-winner market.
// It is never directly wagerable; a draw final result voids every bet placed
// on that market instead of losing them.
const DrawOutcomeID = "draw"

// MarketSnapshot is a read-only view of a pool market at a point in time,
// supplied by the data layer when a bet is placed. Amounts are minor units.
type MarketSnapshot struct {
	MatchID      string
	OutcomePools map[string]int64
	TotalPool    int64
}

// HasOutcome reports whether the snapshot knows the given outcome.
func (s *MarketSnapshot) HasOutcome(outcomeID string) bool {
	_, ok := s.OutcomePools[outcomeID]
	return ok
}
