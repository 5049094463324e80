package budget

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// parseQuotaHeaders extracts the remaining count and reset instant. Header
// names match case-insensitively; unparsable values are ignored. ok is false
// when neither header was usable.
func parseQuotaHeaders(headers map[string]string) (remaining *int, resetAt *time.Time, ok bool) {
	for k, v := range headers {
		v = strings.TrimSpace(v)
		switch {
		case strings.EqualFold(k, HeaderRemaining):
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			remaining = &n
		case strings.EqualFold(k, HeaderReset):
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
				continue
			}
			whole, frac := math.Modf(secs)
			t := time.Unix(int64(whole), int64(frac*float64(time.Second)))
			resetAt = &t
		}
	}
	return remaining, resetAt, remaining != nil || resetAt != nil
}
