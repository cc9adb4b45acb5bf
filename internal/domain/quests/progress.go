package quests

import (
	"math/big"
	"strings"
)

// NativeSymbol is the ticker of the chain's native token.
const NativeSymbol = "IRYS"

const nativeDecimals = 18

// Progress returns completion in percent, capped at 100.
func Progress(state PlayerQuestState, q QuestType, req Requirements) float64 {
	if q == DailyLogin {
		if state.DailyLoginCompleted {
			return 100
		}
		return 0
	}
	need := req.For(q)
	if need == 0 {
		return 100
	}
	p := float64(state.Counter(q)) / float64(need) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// FormatAmount renders wei as a decimal native-token amount without trailing zeros.
func FormatAmount(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0"
	}
	neg := wei.Sign() < 0
	s := new(big.Int).Abs(wei).String()
	if len(s) <= nativeDecimals {
		s = strings.Repeat("0", nativeDecimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-nativeDecimals], strings.TrimRight(s[len(s)-nativeDecimals:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
