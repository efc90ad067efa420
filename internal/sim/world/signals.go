package world

// MaxSignal is the strongest signal a lever can emit.
const MaxSignal = 15

// SignalAt is the strongest signal at pos itself or any of its six neighbours.
func (w *World) SignalAt(pos Vec3i) int {
	best := w.levers[pos]
	for _, off := range neighbourOffsets {
		if v := w.levers[pos.Add(off)]; v > best {
			best = v
		}
	}
	return best
}

func (w *World) setLever(pos Vec3i, level int) error {
	if level < 0 || level > MaxSignal {
		return ErrBadLevel
	}
	if level == 0 {
		delete(w.levers, pos)
		return nil
	}
	w.levers[pos] = level
	return nil
}

// LeverAt is the level of the lever at pos, 0 when there is none.
func (w *World) LeverAt(pos Vec3i) int { return w.levers[pos] }
