// Package wallet loads or generates the node's signing key, per spec.md §6:
// a single hex-encoded private key at <program-dir>/account-evm.data,
// generated on first run.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const filePerm = 0o600

// LoadOrCreate reads the hex-encoded private key at path, or generates one
// and writes it (mode 0600) if the file does not exist.
func LoadOrCreate(path string) (*ecdsa.PrivateKey, common.Address, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return parseKey(strings.TrimSpace(string(data)))
	}
	if !os.IsNotExist(err) {
		return nil, common.Address{}, fmt.Errorf("wallet: read %s: %w", path, err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("wallet: generate key: %w", err)
	}

	encoded := hex.EncodeToString(crypto.FromECDSA(key))
	if err := os.WriteFile(path, []byte(encoded+"\n"), filePerm); err != nil {
		return nil, common.Address{}, fmt.Errorf("wallet: write %s: %w", path, err)
	}

	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, common.Address, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("wallet: parse key: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}
