package fraud

import (
	"testing"

	"github.com/cardfund/cardfund/internal/network"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		name    string
		network network.Network
		in      string
		want    string
		wantErr bool
	}{
		{"btc bech32 case folded", network.Bitcoin, "BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", false},
		{"btc legacy", network.Bitcoin, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", false},
		{"btc garbage", network.Bitcoin, "nonsense", "", true},
		{"eth lowered", network.Ethereum, "0xDE0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae", false},
		{"eth short", network.Ethereum, "0x1234", "", true},
		{"erc20 uses eth format", network.ERC20, "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae", "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae", false},
		{"xrp classic", network.XRP, "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH", "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH", false},
		{"xrp wrong prefix", network.XRP, "xN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH", "", true},
		{"empty", network.Bitcoin, "  ", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeAddress(tc.network, tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestHashAddressStableAndOpaque(t *testing.T) {
	a := HashAddress("0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae")
	b := HashAddress("0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae")
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected 32-byte hex digest, got %d chars", len(a))
	}
	if a == HashAddress("0x0000000000000000000000000000000000000000") {
		t.Fatal("distinct addresses must not collide trivially")
	}
}
