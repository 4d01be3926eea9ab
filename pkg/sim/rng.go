package sim

// Rng is a Mulberry32 generator. Its output depends only on the seed and
// the number of draws.
type Rng struct {
	state uint32
}

// NewRng returns a generator seeded with seed.
func NewRng(seed uint32) *Rng {
	return &Rng{state: seed}
}

// Next returns a uniform value in [0, 1).
func (r *Rng) Next() float64 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}
