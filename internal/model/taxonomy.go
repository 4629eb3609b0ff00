package model

// FailureType is one of the six failure categories tracked by the on-chain catalog.
type FailureType string

const (
	FailureSlippageExceeded      FailureType = "slippage_exceeded"
	FailureInsufficientLiquidity FailureType = "insufficient_liquidity"
	FailureMevDetected           FailureType = "mev_detected"
	FailureDroppedTx             FailureType = "dropped_tx"
	FailureInsufficientFunds     FailureType = "insufficient_funds"
	FailureOther                 FailureType = "other"
)

// FailureTypes lists all categories in on-chain code order (0..5). This order is
// also the deterministic scan order used when attributing synthesized failures.
var FailureTypes = [...]FailureType{
	FailureSlippageExceeded,
	FailureInsufficientLiquidity,
	FailureMevDetected,
	FailureDroppedTx,
	FailureInsufficientFunds,
	FailureOther,
}

// NumFailureTypes is the size of the fixed failure taxonomy.
const NumFailureTypes = len(FailureTypes)

// Code returns the on-chain catalog index for the failure type, or the Other
// code for unknown values.
func (f FailureType) Code() uint8 {
	for i, ft := range FailureTypes {
		if ft == f {
			return uint8(i)
		}
	}
	return uint8(NumFailureTypes - 1)
}

// Tier is one of the five priority fee levels (0..4).
type Tier int

const (
	TierFree Tier = iota
	TierLow
	TierMedium
	TierHigh
	TierPremium
)

// NumTiers is the size of the fixed tier enumeration.
const NumTiers = 5

// Valid reports whether the tier is within the fixed 0..4 range.
func (t Tier) Valid() bool {
	return t >= TierFree && t <= TierPremium
}

// String returns the tier's display name.
func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	case TierPremium:
		return "premium"
	default:
		return "unknown"
	}
}
