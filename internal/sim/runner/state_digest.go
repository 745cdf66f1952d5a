package runner

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"corridor.ai/internal/sim/geom"
)

// stateDigest hashes everything a replay must reproduce bit for bit.
func (r *Runner) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)

	t := r.traveler
	digestWriteVec(h, &tmp, t.Position)
	digestWriteF64(h, &tmp, t.Yaw)
	digestWriteF64(h, &tmp, t.Roll)
	digestWriteF64(h, &tmp, t.Speed)

	c := r.stream.Cursor()
	digestWriteVec(h, &tmp, c.Position)
	digestWriteU64(h, &tmp, uint64(c.Heading))
	digestWriteU64(h, &tmp, uint64(r.stream.SpawnCount()))
	h.Write([]byte{boolByte(r.stream.Halted())})
	if j := r.stream.ActiveJunction(); j != nil {
		digestWriteU64(h, &tmp, j.Seq)
	} else {
		digestWriteU64(h, &tmp, 0)
	}

	segs := r.stream.Segments()
	digestWriteU64(h, &tmp, uint64(len(segs)))
	for _, s := range segs {
		digestWriteU64(h, &tmp, s.Seq)
		digestWriteU64(h, &tmp, uint64(s.Kind))
		digestWriteVec(h, &tmp, s.Pose.Position)
		digestWriteU64(h, &tmp, uint64(s.Pose.Heading))
		h.Write([]byte{boolByte(s.HasTurned())})
	}

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v geom.Vec3) {
	digestWriteF64(h, tmp, v.X)
	digestWriteF64(h, tmp, v.Y)
	digestWriteF64(h, tmp, v.Z)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
