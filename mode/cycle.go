package mode

// Cycle is the ordered, immutable list of modes a session steps through:
// Normal, Formal, Translate, Structure, Summarize, then custom modes in
// user order, wrapping back to Normal.
type Cycle struct {
	modes []Mode
}

func NewCycle(targetLanguage string, custom []Mode) Cycle {
	modes := []Mode{
		NewNormal(),
		NewFormal(),
		NewTranslate(targetLanguage),
		NewStructure(),
		NewSummarize(),
	}
	for _, c := range custom {
		if c.Kind != Custom || c.Name == "" {
			continue
		}
		modes = append(modes, c)
	}
	return Cycle{modes: modes}
}

func (c Cycle) Len() int { return len(c.modes) }

// Modes returns a copy of the cycle in order.
func (c Cycle) Modes() []Mode {
	out := make([]Mode, len(c.modes))
	copy(out, c.modes)
	return out
}

func (c Cycle) Labels() []string {
	out := make([]string, len(c.modes))
	for i, m := range c.modes {
		out[i] = m.Label()
	}
	return out
}

// Index returns the slot of m, or -1 when m is not part of the cycle.
func (c Cycle) Index(m Mode) int {
	for i, cm := range c.modes {
		if cm.Same(m) {
			return i
		}
	}
	return -1
}

// Next returns the mode after cur. A mode outside the cycle restarts at
// Normal. The Translate target language of cur is carried forward when the
// step lands back on Translate.
func (c Cycle) Next(cur Mode) Mode {
	return c.step(cur, 1)
}

func (c Cycle) Prev(cur Mode) Mode {
	return c.step(cur, -1)
}

func (c Cycle) step(cur Mode, delta int) Mode {
	if len(c.modes) == 0 {
		return NewNormal()
	}
	i := c.Index(cur)
	if i < 0 {
		return c.modes[0]
	}
	n := len(c.modes)
	return c.modes[((i+delta)%n+n)%n]
}

// WithLanguage returns a copy of the cycle whose Translate slot targets lang.
func (c Cycle) WithLanguage(lang string) Cycle {
	modes := c.Modes()
	for i, m := range modes {
		if m.Kind == Translate {
			modes[i] = NewTranslate(lang)
		}
	}
	return Cycle{modes: modes}
}
