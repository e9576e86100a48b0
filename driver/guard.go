package driver

// Guard holds one signal asserted until Release.
//
// Use it with defer so the signal is released on every exit path:
//
//	cs := driver.Acquire(t, driver.ChipSelect)
//	defer cs.Release()
type Guard struct {
	t        Transport
	s        Signal
	released bool
}

// Acquire asserts s on t and returns the guard owning it.
func Acquire(t Transport, s Signal) *Guard {
	t.Assert(s)
	return &Guard{t: t, s: s}
}

// Signal returns the signal held by the guard.
func (g *Guard) Signal() Signal {
	return g.s
}

// Release deasserts the signal. Only the first call has an effect.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.t.Deassert(g.s)
}

// Released reports whether Release has been called.
func (g *Guard) Released() bool {
	return g.released
}
