// Package gesture classifies landmark observations into gesture symbols.
package gesture

// Symbol is the per-frame classification result.
type Symbol string

// Gesture symbols. None means no gesture was recognized in the frame.
const (
	None      Symbol = ""
	Reset     Symbol = "RESET"
	WaveLeft  Symbol = "WAVE_LEFT"
	WaveRight Symbol = "WAVE_RIGHT"
	WaveBoth  Symbol = "WAVE_BOTH"
)

// Symbols lists every non-empty symbol.
func Symbols() []Symbol {
	return []Symbol{Reset, WaveLeft, WaveRight, WaveBoth}
}

// ParseSymbol returns the symbol named s, or false if s names none.
func ParseSymbol(s string) (Symbol, bool) {
	for _, sym := range Symbols() {
		if string(sym) == s {
			return sym, true
		}
	}
	return None, false
}

// String returns the symbol name, or "none".
func (s Symbol) String() string {
	if s == None {
		return "none"
	}
	return string(s)
}
