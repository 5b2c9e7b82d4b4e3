package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Shared ABI types for payload packing. abi.NewType only fails on malformed
// type strings, so these are initialised once and trusted.
var (
	typeAddress = mustType("address")
	typeUint256 = mustType("uint256")
	typeBytes32 = mustType("bytes32")
	typeBool    = mustType("bool")
	typeString  = mustType("string")
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %q: %v", t, err))
	}
	return typ
}

// Selector returns the 4-byte function selector for a canonical signature,
// e.g. "getPool()".
func Selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// Pack builds a call payload from a canonical signature and its arguments.
// Supported argument kinds: common.Address, *big.Int, [32]byte, bool, string.
func Pack(sig string, args ...any) ([]byte, error) {
	arguments := make(abi.Arguments, 0, len(args))
	values := make([]any, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case common.Address:
			arguments = append(arguments, abi.Argument{Type: typeAddress})
			values = append(values, v)
		case *big.Int:
			arguments = append(arguments, abi.Argument{Type: typeUint256})
			values = append(values, v)
		case [32]byte:
			arguments = append(arguments, abi.Argument{Type: typeBytes32})
			values = append(values, v)
		case bool:
			arguments = append(arguments, abi.Argument{Type: typeBool})
			values = append(values, v)
		case string:
			arguments = append(arguments, abi.Argument{Type: typeString})
			values = append(values, v)
		default:
			return nil, fmt.Errorf("pack %s: unsupported argument type %T", sig, arg)
		}
	}
	encoded, err := arguments.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", sig, err)
	}
	return append(Selector(sig), encoded...), nil
}

// PackArgs ABI-encodes constructor arguments: the same encoding as Pack but
// with no selector prefix.
func PackArgs(args ...any) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	payload, err := Pack("", args...)
	if err != nil {
		return nil, err
	}
	return payload[4:], nil
}

// MustPackArgs is PackArgs for statically known arguments.
func MustPackArgs(args ...any) []byte {
	encoded, err := PackArgs(args...)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MustPack is Pack for statically known arguments, where a packing failure is
// a programmer error.
func MustPack(sig string, args ...any) []byte {
	payload, err := Pack(sig, args...)
	if err != nil {
		panic(err)
	}
	return payload
}

// UnpackAddress decodes a single address return value.
func UnpackAddress(data []byte) (common.Address, error) {
	out, err := abi.Arguments{{Type: typeAddress}}.Unpack(data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack address: %w", err)
	}
	return out[0].(common.Address), nil
}

// UnpackBigInt decodes a single uint256 return value.
func UnpackBigInt(data []byte) (*big.Int, error) {
	out, err := abi.Arguments{{Type: typeUint256}}.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack uint256: %w", err)
	}
	return out[0].(*big.Int), nil
}

// UnpackBool decodes a single bool return value.
func UnpackBool(data []byte) (bool, error) {
	out, err := abi.Arguments{{Type: typeBool}}.Unpack(data)
	if err != nil {
		return false, fmt.Errorf("unpack bool: %w", err)
	}
	return out[0].(bool), nil
}

// EncodeAddress ABI-encodes one address as a 32-byte return word. Intended
// for test contracts and return-value construction.
func EncodeAddress(addr common.Address) []byte {
	encoded, _ := abi.Arguments{{Type: typeAddress}}.Pack(addr)
	return encoded
}

// EncodeBigInt ABI-encodes one signed integer as a 32-byte word. Negative
// values are encoded two's-complement, matching int256 feed answers.
func EncodeBigInt(v *big.Int) []byte {
	word := make([]byte, 32)
	if v.Sign() >= 0 {
		v.FillBytes(word)
		return word
	}
	// two's complement: 2^256 + v
	twos := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 256), v)
	twos.FillBytes(word)
	return word
}

// DecodeBigInt decodes one 32-byte word as a signed int256.
func DecodeBigInt(data []byte) (*big.Int, error) {
	if len(data) != 32 {
		return nil, fmt.Errorf("decode int256: want 32 bytes, got %d", len(data))
	}
	v := new(big.Int).SetBytes(data)
	if data[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return v, nil
}

// EncodeBool ABI-encodes one bool as a 32-byte return word.
func EncodeBool(v bool) []byte {
	encoded, _ := abi.Arguments{{Type: typeBool}}.Pack(v)
	return encoded
}
