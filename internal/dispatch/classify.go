package dispatch

// Classify maps an anonymous payload (no explicit event name) onto a channel.
// Rules are checked in order; the first match wins:
//
//  1. array longer than 50 whose first element is itself an array (or any
//     array longer than 50 when it arrived via control-byte framing) is the
//     instrument catalogue
//  2. array of exactly one element, itself an array of length >= 2 whose
//     first element is a string, is a live tick: [[asset, time, price]]
//  3. object carrying "candles" or "history" arrays, or a bare candle with
//     "open"/"close"/"asset", is candle data
//  4. a plain number is a tick (server clock)
//  5. everything else lands on the message catch-all
func Classify(payload interface{}, controlFramed bool) string {
	switch v := payload.(type) {
	case []interface{}:
		if len(v) > 50 {
			if controlFramed {
				return ChannelInstruments
			}
			if _, ok := v[0].([]interface{}); ok {
				return ChannelInstruments
			}
		}
		if len(v) == 1 {
			if inner, ok := v[0].([]interface{}); ok && len(inner) >= 2 {
				if _, ok := inner[0].(string); ok {
					return ChannelTick
				}
			}
		}
	case map[string]interface{}:
		if _, ok := v["candles"]; ok {
			return ChannelCandles
		}
		if _, ok := v["history"]; ok {
			return ChannelCandles
		}
		_, hasOpen := v["open"]
		_, hasClose := v["close"]
		_, hasAsset := v["asset"]
		if hasOpen && hasClose && hasAsset {
			return ChannelCandles
		}
	case float64:
		return ChannelTick
	}
	return ChannelMessage
}
