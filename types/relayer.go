package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RelayerState tracks the withdrawal budget of a registered relayer. A
// relayer may submit at most Limit withdrawals per Window; the window
// restarts on the first submission after it expires.
type RelayerState struct {
	Relayer     common.Address `json:"relayer" cbor:"0,keyasint"`
	Limit       uint64         `json:"limit" cbor:"1,keyasint"`
	Window      time.Duration  `json:"window" cbor:"2,keyasint"`
	WindowStart int64          `json:"windowStart" cbor:"3,keyasint"`
	Count       uint64         `json:"count" cbor:"4,keyasint"`
}

// Consume charges one withdrawal at time now. It reports false, leaving the
// state untouched, when the budget of the current window is exhausted.
func (r *RelayerState) Consume(now time.Time) bool {
	start := time.Unix(r.WindowStart, 0)
	if r.WindowStart == 0 || !now.Before(start.Add(r.Window)) {
		if r.Limit == 0 {
			return false
		}
		r.WindowStart = now.Unix()
		r.Count = 1
		return true
	}
	if r.Count >= r.Limit {
		return false
	}
	r.Count++
	return true
}
