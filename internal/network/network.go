// Package network holds the static per-network configuration tables shared
// by the fraud engine and the transaction processor.
package network

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Network identifies a supported blockchain network.
type Network string

const (
	Bitcoin  Network = "bitcoin"
	Ethereum Network = "ethereum"
	ERC20    Network = "erc20"
	XRP      Network = "xrp"
)

// Parse normalizes a network identifier.
func Parse(raw string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(raw))) {
	case Bitcoin:
		return Bitcoin, nil
	case Ethereum:
		return Ethereum, nil
	case ERC20:
		return ERC20, nil
	case XRP:
		return XRP, nil
	default:
		return "", fmt.Errorf("unsupported network %q", raw)
	}
}

// RequiredConfirmations is fixed per network at processing creation and
// never changes afterwards.
func (n Network) RequiredConfirmations() int {
	switch n {
	case Bitcoin:
		return 3
	case Ethereum, ERC20:
		return 12
	case XRP:
		return 1
	default:
		return 12
	}
}

// BaseConfirmationTime is the uncongested estimate to reach the required
// confirmation count.
func (n Network) BaseConfirmationTime() time.Duration {
	switch n {
	case Bitcoin:
		return 30 * time.Minute
	case Ethereum, ERC20:
		return 3 * time.Minute
	case XRP:
		return 5 * time.Second
	default:
		return 10 * time.Minute
	}
}

// LargeAmountThreshold returns the native-unit amount above which a deposit
// is considered unusually large for the network, plus the risk points that
// exceeding it contributes.
func (n Network) LargeAmountThreshold() (decimal.Decimal, int) {
	switch n {
	case Bitcoin:
		return decimal.NewFromInt(10), 30
	case Ethereum:
		return decimal.NewFromInt(100), 30
	case ERC20:
		return decimal.NewFromInt(100_000), 25
	case XRP:
		return decimal.NewFromInt(100_000), 25
	default:
		return decimal.NewFromInt(100_000), 25
	}
}
