// Package encoding decodes the voxel window carried in OBS messages.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of palette ids into base64(varint pairs).
// The pairs are (block_id, run_len) repeated.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b && run < 1<<31; j++ {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. limit caps the decoded length so a corrupt
// run cannot allocate without bound; zero disables the cap.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("rle: %w", err)
	}
	var out []uint16
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("rle: block id too large: %d", b)
		}
		if limit > 0 && len(out)+int(run) > limit {
			return nil, fmt.Errorf("rle: decoded length exceeds %d", limit)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, uint16(b))
		}
	}
	return out, nil
}

// WindowSize is the voxel count of a cube window of radius r.
func WindowSize(r int) int {
	dim := 2*r + 1
	return dim * dim * dim
}

// Index maps a delta from the window center to the flat scan index. The
// server fills windows in dy/dz/dx order.
func Index(dx, dy, dz, r int) (int, bool) {
	if dx < -r || dx > r || dy < -r || dy > r || dz < -r || dz > r {
		return 0, false
	}
	dim := 2*r + 1
	return (dy+r)*dim*dim + (dz+r)*dim + (dx + r), true
}

// Delta is the inverse of Index.
func Delta(i, r int) (dx, dy, dz int) {
	dim := 2*r + 1
	dy = i/(dim*dim) - r
	rem := i % (dim * dim)
	dz = rem/dim - r
	dx = rem%dim - r
	return dx, dy, dz
}
