package nodeset

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFindIndexCaseInsensitive(t *testing.T) {
	addrs := []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000001"),
		common.HexToAddress("0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD"),
		common.HexToAddress("0x0000000000000000000000000000000000000003"),
	}
	self := common.HexToAddress("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")

	if got := findIndex(addrs, self); got != 1 {
		t.Fatalf("findIndex = %d, want 1", got)
	}
}

func TestFindIndexNotPresent(t *testing.T) {
	addrs := []common.Address{common.HexToAddress("0x1")}
	self := common.HexToAddress("0x2")
	if got := findIndex(addrs, self); got != -1 {
		t.Fatalf("findIndex = %d, want -1", got)
	}
}

func TestFindIndexEmptySet(t *testing.T) {
	if got := findIndex(nil, common.HexToAddress("0x1")); got != -1 {
		t.Fatalf("findIndex = %d, want -1", got)
	}
}
