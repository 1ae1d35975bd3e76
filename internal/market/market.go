package market

import (
	"fmt"
	"strings"
)

// Market identifies a trading venue tracked by the screener.
type Market string

const (
	US Market = "US"
	IN Market = "IN"
)

// All lists every supported market in a stable order.
func All() []Market {
	return []Market{US, IN}
}

// Parse normalises a market string from config or CLI flags.
func Parse(value string) (Market, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "US", "USA":
		return US, nil
	case "IN", "INDIA", "INDIAN":
		return IN, nil
	default:
		return "", fmt.Errorf("unknown market %q", value)
	}
}

func (m Market) String() string {
	return string(m)
}
