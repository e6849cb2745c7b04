package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/danielpatrickdp/reimburse-harness/internal/cases"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
)

// #region fingerprint
// Fingerprint identifies a candidate configuration: xxhash64 of its JSON form.
// Identical specs always share a fingerprint.
func Fingerprint(s formula.Spec) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal spec: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// DatasetHash identifies the labeled cases a run was scored against.
func DatasetHash(store *cases.Store) string {
	d := xxhash.New()
	var buf [8]byte
	for _, c := range store.All() {
		binary.LittleEndian.PutUint64(buf[:], uint64(c.Days))
		d.Write(buf[:])
		for _, f := range []float64{c.Miles, c.Receipts, c.Expected} {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
			d.Write(buf[:])
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// #endregion fingerprint

// #region residual-encoding
var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			panic(fmt.Sprintf("zstd encoder: %v", err))
		}
		return enc
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("zstd decoder: %v", err))
		}
		return dec
	},
}

// encodeResiduals packs residuals as little-endian float64 and compresses them.
func encodeResiduals(v []float64) []byte {
	if len(v) == 0 {
		return nil
	}
	raw := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(f))
	}
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(raw, nil)
}

func decodeResiduals(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress residuals: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("residual blob has %d bytes, not a multiple of 8", len(raw))
	}
	v := make([]float64, len(raw)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return v, nil
}

// #endregion residual-encoding
