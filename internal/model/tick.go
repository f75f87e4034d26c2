package model

// Tick represents a single timestamped price observation for an asset.
// Time may carry a sub-second fraction; it is floored to whole seconds
// when the tick is folded into a candle bucket.
type Tick struct {
	Asset string  `json:"asset"`
	Time  float64 `json:"time"`
	Price float64 `json:"price"`
}
