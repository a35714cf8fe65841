package capfriends

import (
	"strings"
)

func normalizeFundCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizePortfolioID(id string) string {
	return strings.TrimSpace(id)
}

func normalizeKind(kind string) string {
	return strings.ToUpper(strings.TrimSpace(kind))
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func defaultAmount(v Amount, fallback Amount) Amount {
	if v.IsZero() {
		return fallback
	}
	return v
}

// normalizeCodes re-keys a caller-supplied price table by normalized fund
// code. nil stays nil so callers can still ask for feed prices.
func normalizeCodes(in map[string]Amount) map[string]Amount {
	if in == nil {
		return nil
	}
	out := make(map[string]Amount, len(in))
	for code, v := range in {
		out[normalizeFundCode(code)] = v
	}
	return out
}
