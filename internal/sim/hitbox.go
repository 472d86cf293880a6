package sim

import "math"

// circleHit reports whether (tx,ty) lies within radius of (cx,cy).
func circleHit(cx, cy, radius, tx, ty float32) bool {
	dx, dy := tx-cx, ty-cy
	return dx*dx+dy*dy <= radius*radius
}

// arcHit reports whether the target lies within reach of the origin and
// inside halfAngle of the facing direction. A zero facing vector degenerates
// to a plain circle test.
func arcHit(ox, oy, facingX, facingY, reach, halfAngle, tx, ty float32) bool {
	dx, dy := tx-ox, ty-oy
	if dx*dx+dy*dy > reach*reach {
		return false
	}
	fx, fy := normalize(facingX, facingY)
	if fx == 0 && fy == 0 {
		return true
	}
	nx, ny := normalize(dx, dy)
	if nx == 0 && ny == 0 {
		return true
	}
	return nx*fx+ny*fy >= float32(math.Cos(float64(halfAngle)))
}
