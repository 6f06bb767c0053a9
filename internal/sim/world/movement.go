package world

// Move advances every agent toward its next waypoint by speed*dt. An agent
// that would reach the waypoint this step snaps onto it and pops it. dt <= 0
// leaves all agents untouched.
func (w *World) Move(dt float64) int {
	if dt <= 0 {
		return 0
	}
	arrivals := 0
	for _, a := range w.dwellers {
		if w.moveAgent(a, dt) {
			arrivals++
		}
	}
	for _, m := range w.mobs {
		if w.moveAgent(m, dt) {
			arrivals++
		}
	}
	return arrivals
}

func (w *World) moveAgent(a *Agent, dt float64) bool {
	next, ok := a.Next()
	if !ok {
		return false
	}
	target := cellPos(next, w.tun.TileSize)
	d := target.Sub(a.Pos)
	step := a.Speed * dt
	dist := d.Len()
	switch {
	case dist < step:
		a.Pos = target
		a.Reached = next
		a.Queue = a.Queue[:len(a.Queue)-1]
		return true
	case dist > 0:
		a.Pos = a.Pos.Add(d.Scale(step / dist))
		a.FlipX = d.X < 0
	}
	return false
}
