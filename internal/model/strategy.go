package model

// StrategyProposal carries the already-validated numeric trade levels
// produced by the AI collaborator. Accepting a proposal moves the ticker
// into the AI-locked state: the target and stop become authoritative until
// the lock is explicitly cleared.
type StrategyProposal struct {
	TargetPrice    float64 `json:"target_price" binding:"required,gt=0"`
	StopLossPrice  float64 `json:"stop_loss_price" binding:"required,gt=0,ltfield=EntryPriceLow"`
	EntryPriceLow  float64 `json:"entry_price_low" binding:"required,gt=0"`
	EntryPriceHigh float64 `json:"entry_price_high" binding:"required,gtefield=EntryPriceLow"`
}
