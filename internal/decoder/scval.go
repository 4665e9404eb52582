package decoder

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

func decodeScVal(b64 string) (xdr.ScVal, error) {
	var val xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(b64, &val); err != nil {
		return xdr.ScVal{}, fmt.Errorf("unmarshal scval: %w", err)
	}
	return val, nil
}

func symbolOf(val xdr.ScVal) (string, bool) {
	sym, ok := val.GetSym()
	if !ok {
		return "", false
	}
	return string(sym), true
}

func u32Of(val xdr.ScVal) (uint32, error) {
	v, ok := val.GetU32()
	if !ok {
		return 0, fmt.Errorf("expected u32, got %s", val.Type)
	}
	return uint32(v), nil
}

func u64Of(val xdr.ScVal) (uint64, error) {
	v, ok := val.GetU64()
	if !ok {
		return 0, fmt.Errorf("expected u64, got %s", val.Type)
	}
	return uint64(v), nil
}

// i128Of renders a signed 128-bit value as an exact base-10 string.
func i128Of(val xdr.ScVal) (string, error) {
	parts, ok := val.GetI128()
	if !ok {
		return "", fmt.Errorf("expected i128, got %s", val.Type)
	}
	hi := big.NewInt(int64(parts.Hi))
	lo := new(big.Int).SetUint64(uint64(parts.Lo))
	n := new(big.Int).Lsh(hi, 64)
	n.Add(n, lo)
	return n.String(), nil
}

func bytesOf(val xdr.ScVal) (string, error) {
	b, ok := val.GetBytes()
	if !ok {
		return "", fmt.Errorf("expected bytes, got %s", val.Type)
	}
	return hex.EncodeToString(b), nil
}

func fixedBytesOf(val xdr.ScVal, size int) (string, error) {
	b, ok := val.GetBytes()
	if !ok {
		return "", fmt.Errorf("expected bytes, got %s", val.Type)
	}
	if len(b) != size {
		return "", fmt.Errorf("expected %d bytes, got %d", size, len(b))
	}
	return hex.EncodeToString(b), nil
}

func addressOf(val xdr.ScVal) (string, error) {
	addr, ok := val.GetAddress()
	if !ok {
		return "", fmt.Errorf("expected address, got %s", val.Type)
	}
	switch addr.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if addr.AccountId == nil {
			return "", fmt.Errorf("account address missing id")
		}
		return addr.AccountId.Address(), nil
	case xdr.ScAddressTypeScAddressTypeContract:
		if addr.ContractId == nil {
			return "", fmt.Errorf("contract address missing id")
		}
		return strkey.Encode(strkey.VersionByteContract, addr.ContractId[:])
	default:
		return "", fmt.Errorf("unsupported address type %s", addr.Type)
	}
}
