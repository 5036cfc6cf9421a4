package readings

import (
	"github.com/golang/snappy"

	"github.com/foglamp-io/storage-sqlite/ferrors"
)

// compressReading snappy-compresses a reading's JSON bytes before insert
// when StoreConfig.CompressReadings is set. Left uncompressed values are
// valid JSON text; compressed values are the raw snappy block, distinguished
// by a leading NUL byte that can never occur in a JSON document.
const compressedPrefix = 0x00

func compressReading(raw []byte, enabled bool) []byte {
	if !enabled {
		return raw
	}
	compressed := snappy.Encode(nil, raw)
	out := make([]byte, 0, len(compressed)+1)
	out = append(out, compressedPrefix)
	out = append(out, compressed...)
	return out
}

// decompressReading reverses compressReading. Values without the marker
// byte are returned unchanged, so a store can toggle CompressReadings
// without breaking rows written before the change.
func decompressReading(raw []byte) ([]byte, error) {
	if len(raw) == 0 || raw[0] != compressedPrefix {
		return raw, nil
	}
	out, err := snappy.Decode(nil, raw[1:])
	if err != nil {
		return nil, ferrors.Wrap(ferrors.DatabaseError, "readingCompression", err)
	}
	return out, nil
}
