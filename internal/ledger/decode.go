package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"txguardmon/internal/model"
)

// Registry mirrors the on-chain TransactionRegistry account: lifetime counters
// plus a ring buffer of the last 100 outcomes (0=failure, 1=success,
// 2=pending) and its write cursor.
type Registry struct {
	TxCount        uint64
	SuccessCount   uint64
	FailureCount   uint64
	RecentOutcomes []uint8
	Cursor         uint8
}

// FailureCatalog mirrors the on-chain failure counters, keyed by category.
type FailureCatalog struct {
	Counts map[model.FailureType]uint64
}

// TierUsage mirrors the on-chain per-tier transaction counts.
type TierUsage struct {
	Counts [model.NumTiers]uint64
}

// Anchor account data starts with an 8-byte discriminator derived from the
// account struct name; all integers are little-endian and vectors carry a
// u32 length prefix.
const discriminatorLen = 8

func accountDiscriminator(name string) [discriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorLen]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}

var (
	registryDiscriminator = accountDiscriminator("TransactionRegistry")
	catalogDiscriminator  = accountDiscriminator("FailureCatalog")
	priorityDiscriminator = accountDiscriminator("PriorityFeeStats")
)

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("account data truncated: need %d bytes at offset %d, have %d", n, r.pos, len(r.data))
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) discriminator(want [discriminatorLen]byte, name string) error {
	b, err := r.take(discriminatorLen)
	if err != nil {
		return err
	}
	var got [discriminatorLen]byte
	copy(got[:], b)
	if got != want {
		return fmt.Errorf("account discriminator mismatch: not a %s account", name)
	}
	return nil
}

func decodeRegistry(data []byte) (Registry, error) {
	r := &byteReader{data: data}
	if err := r.discriminator(registryDiscriminator, "TransactionRegistry"); err != nil {
		return Registry{}, err
	}

	var reg Registry
	var err error
	if reg.TxCount, err = r.u64(); err != nil {
		return Registry{}, err
	}
	if reg.SuccessCount, err = r.u64(); err != nil {
		return Registry{}, err
	}
	if reg.FailureCount, err = r.u64(); err != nil {
		return Registry{}, err
	}

	outcomeLen, err := r.u32()
	if err != nil {
		return Registry{}, err
	}
	if outcomeLen > 100 {
		return Registry{}, fmt.Errorf("outcome ring length %d exceeds maximum 100", outcomeLen)
	}
	outcomes, err := r.take(int(outcomeLen))
	if err != nil {
		return Registry{}, err
	}
	reg.RecentOutcomes = append([]uint8(nil), outcomes...)

	if reg.Cursor, err = r.u8(); err != nil {
		return Registry{}, err
	}
	return reg, nil
}

func decodeFailureCatalog(data []byte) (FailureCatalog, error) {
	r := &byteReader{data: data}
	if err := r.discriminator(catalogDiscriminator, "FailureCatalog"); err != nil {
		return FailureCatalog{}, err
	}

	counts := make(map[model.FailureType]uint64, model.NumFailureTypes)
	for _, ft := range model.FailureTypes {
		v, err := r.u32()
		if err != nil {
			return FailureCatalog{}, err
		}
		counts[ft] = uint64(v)
	}
	return FailureCatalog{Counts: counts}, nil
}

func decodeTierUsage(data []byte) (TierUsage, error) {
	r := &byteReader{data: data}
	if err := r.discriminator(priorityDiscriminator, "PriorityFeeStats"); err != nil {
		return TierUsage{}, err
	}

	tierLen, err := r.u32()
	if err != nil {
		return TierUsage{}, err
	}
	if tierLen > model.NumTiers {
		return TierUsage{}, fmt.Errorf("tier count %d exceeds maximum %d", tierLen, model.NumTiers)
	}

	var usage TierUsage
	for i := 0; i < int(tierLen); i++ {
		if usage.Counts[i], err = r.u64(); err != nil {
			return TierUsage{}, err
		}
	}
	return usage, nil
}
