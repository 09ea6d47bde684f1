package pathcodec

import "strings"

// NormalizeSymbol canonicalizes a caller-supplied instrument symbol into the
// on-store form: uppercase, exchange-prefixed, "-EQ" suffixed. Symbols that
// already carry the prefix or suffix are left alone, so normalization is
// idempotent.
//
//	CIPLA        -> NSE_CIPLA-EQ
//	nse_cipla    -> NSE_CIPLA-EQ
//	NSE_CIPLA-EQ -> NSE_CIPLA-EQ
func NormalizeSymbol(symbol, exchange string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return ""
	}

	ex := strings.ToUpper(strings.TrimSpace(exchange))
	if ex != "" && !strings.HasPrefix(s, ex+"_") {
		s = ex + "_" + s
	}
	if !strings.Contains(s, "-") {
		s += "-EQ"
	}

	return s
}
