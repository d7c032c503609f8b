package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testKey() IncentiveKey {
	return IncentiveKey{
		RewardToken: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Pool:        common.HexToAddress("0x4444444444444444444444444444444444444444"),
		StartTime:   big.NewInt(1_600_000_000),
		EndTime:     big.NewInt(1_700_000_000),
		Refundee:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
	}
}

func TestIncentiveKeyHashDeterministic(t *testing.T) {
	a, err := testKey().Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := testKey().Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a != b {
		t.Error("same key must produce same id")
	}

	other := testKey()
	other.EndTime = big.NewInt(1_800_000_000)
	c, err := other.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == c {
		t.Error("different keys must produce different ids")
	}
}
