package snapshot

import "math"

func f32bits(v float32) uint32 { return math.Float32bits(v) }

func bitsF32(v uint32) float32 { return math.Float32frombits(v) }
