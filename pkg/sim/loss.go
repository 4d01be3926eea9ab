package sim

// lossModel decides per transmitted unit whether it is dropped.
type lossModel struct {
	rng *Rng
	pct float64
}

func newLossModel(seed uint32, pct float64) *lossModel {
	return &lossModel{rng: NewRng(seed), pct: pct}
}

// lose consumes one draw and reports whether the unit is lost.
func (l *lossModel) lose() bool {
	return l.rng.Next()*100 < l.pct
}
