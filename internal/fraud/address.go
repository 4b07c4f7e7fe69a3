package fraud

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cardfund/cardfund/internal/network"
)

var (
	btcAddressPattern = regexp.MustCompile(`^(bc1[a-z0-9]{25,62}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})$`)
	ethAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	xrpAddressPattern = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)
)

// NormalizeAddress validates an address for the network and returns its
// canonical form. It is a pure function and contributes nothing to risk
// scoring.
func NormalizeAddress(n network.Network, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("address is required")
	}

	switch n {
	case network.Bitcoin:
		candidate := address
		if strings.HasPrefix(strings.ToLower(candidate), "bc1") {
			candidate = strings.ToLower(candidate)
		}
		if !btcAddressPattern.MatchString(candidate) {
			return "", fmt.Errorf("invalid bitcoin address")
		}
		return candidate, nil
	case network.Ethereum, network.ERC20:
		if !ethAddressPattern.MatchString(address) {
			return "", fmt.Errorf("invalid ethereum address")
		}
		return strings.ToLower(address), nil
	case network.XRP:
		if !xrpAddressPattern.MatchString(address) {
			return "", fmt.Errorf("invalid xrp address")
		}
		return address, nil
	default:
		return "", fmt.Errorf("unsupported network %q", n)
	}
}
