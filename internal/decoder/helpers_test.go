package decoder

import (
	"testing"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"callIndexer/internal/model"
)

func mustB64(t *testing.T, val xdr.ScVal) string {
	t.Helper()
	out, err := xdr.MarshalBase64(val)
	if err != nil {
		t.Fatalf("marshal scval: %v", err)
	}
	return out
}

func symVal(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

func u32Val(v uint32) xdr.ScVal {
	n := xdr.Uint32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &n}
}

func u64Val(v uint64) xdr.ScVal {
	n := xdr.Uint64(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &n}
}

func i128Val(hi int64, lo uint64) xdr.ScVal {
	parts := xdr.Int128Parts{Hi: xdr.Int64(hi), Lo: xdr.Uint64(lo)}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}
}

func bytesVal(b []byte) xdr.ScVal {
	sb := xdr.ScBytes(b)
	return xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &sb}
}

func vecVal(vals ...xdr.ScVal) xdr.ScVal {
	vec := xdr.ScVec(vals)
	ptr := &vec
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &ptr}
}

func seed(b byte) []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = b
	}
	return raw
}

func accountStrkey(t *testing.T, b byte) string {
	t.Helper()
	addr, err := strkey.Encode(strkey.VersionByteAccountID, seed(b))
	if err != nil {
		t.Fatalf("encode account: %v", err)
	}
	return addr
}

func contractStrkey(t *testing.T, b byte) string {
	t.Helper()
	addr, err := strkey.Encode(strkey.VersionByteContract, seed(b))
	if err != nil {
		t.Fatalf("encode contract: %v", err)
	}
	return addr
}

func accountVal(t *testing.T, b byte) xdr.ScVal {
	t.Helper()
	var aid xdr.AccountId
	if err := aid.SetAddress(accountStrkey(t, b)); err != nil {
		t.Fatalf("account id: %v", err)
	}
	addr := xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &aid}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}
}

func contractVal(b byte) xdr.ScVal {
	addr := xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract}
	addr.ContractId = alloc(addr.ContractId)
	copy(addr.ContractId[:], seed(b))
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}
}

func alloc[T any](_ *T) *T {
	return new(T)
}

func flatEvent(t *testing.T, kind string, fields ...xdr.ScVal) model.RawEvent {
	t.Helper()
	topics := []string{mustB64(t, symVal(kind))}
	for _, f := range fields {
		topics = append(topics, mustB64(t, f))
	}
	return model.RawEvent{
		ID:         "0000004294967296-0000000001",
		ContractID: contractStrkey(t, 9),
		Ledger:     1,
		TxHash:     "aa",
		Topics:     topics,
	}
}

func namespacedEvent(t *testing.T, namespace, name string, fields ...xdr.ScVal) model.RawEvent {
	t.Helper()
	return model.RawEvent{
		ID:         "0000004294967296-0000000002",
		ContractID: contractStrkey(t, 9),
		Ledger:     1,
		TxHash:     "aa",
		Topics:     []string{mustB64(t, symVal(namespace)), mustB64(t, symVal(name))},
		Value:      mustB64(t, vecVal(fields...)),
	}
}
