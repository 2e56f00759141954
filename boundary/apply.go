package boundary

// Ghost-extended field layout, shared with the grid and operator packages:
// a velocity component is sampled on faces along its own axis and on cell
// centers along the others. Along the component's own axis an extended
// array has N+3 slots covering faces -1..N+1; along any other axis, and
// for the cell-centered pressure, it has N+2 slots covering cells -1..N.
// Interior degrees of freedom never occupy ghost slots; Apply writes the
// boundary-face and ghost slots of one (axis, side) in place.

// Apply writes the ghost layer of one boundary face of a ghost-extended
// field in place.
//
// data is the flattened field (first axis fastest) with extended
// dimensions ed; pos[d] holds the sample coordinate of every slot along
// axis d. comp is the velocity component the field carries, or -1 for a
// cell-centered (pressure-like) field. The field is mutated in place;
// only a small coordinate buffer is allocated, and only when prescribed
// values have to be evaluated.
func Apply(data []float64, ed []int, pos [][]float64, comp, axis int, side Side, bc Condition, t float64) {
	str := extStrides(ed)
	st := str[axis]
	m := ed[axis]
	normal := comp == axis

	var x []float64
	if bc.Kind == Dirichlet && comp >= 0 {
		x = make([]float64, len(ed))
	}

	idx := make([]int, len(ed))
	for {
		base := 0
		for d := range ed {
			if d != axis {
				base += idx[d] * str[d]
			}
		}
		at := func(i int) float64 { return data[base+i*st] }
		set := func(i int, v float64) { data[base+i*st] = v }

		if x != nil {
			for d := range ed {
				if d != axis {
					x[d] = pos[d][idx[d]]
				}
			}
		}

		switch {
		case normal:
			switch bc.Kind {
			case Periodic:
				if side == Lo {
					set(0, at(m-3)) // face -1 = face N-1
				} else {
					set(m-2, at(1)) // face N = face 0
					set(m-1, at(2)) // face N+1 = face 1
				}
			case Dirichlet:
				if side == Lo {
					x[axis] = pos[axis][1]
					g := bc.value(comp, x, t)
					set(1, g)
					set(0, 2*g-at(2))
				} else {
					x[axis] = pos[axis][m-2]
					g := bc.value(comp, x, t)
					set(m-2, g)
					set(m-1, 2*g-at(m-3))
				}
			case Symmetric:
				if side == Lo {
					set(1, 0)
					set(0, -at(2))
				} else {
					set(m-2, 0)
					set(m-1, -at(m-3))
				}
			case Pressure:
				// The boundary face is an unknown; zero gradient beyond it.
				if side == Lo {
					set(0, at(1))
				} else {
					set(m-1, at(m-2))
				}
			}

		case comp >= 0: // tangential velocity
			switch bc.Kind {
			case Periodic:
				if side == Lo {
					set(0, at(m-2))
				} else {
					set(m-1, at(1))
				}
			case Dirichlet:
				if side == Lo {
					x[axis] = 0.5 * (pos[axis][0] + pos[axis][1]) // wall position
					g := bc.value(comp, x, t)
					set(0, 2*g-at(1))
				} else {
					x[axis] = 0.5 * (pos[axis][m-2] + pos[axis][m-1])
					g := bc.value(comp, x, t)
					set(m-1, 2*g-at(m-2))
				}
			case Symmetric, Pressure:
				if side == Lo {
					set(0, at(1))
				} else {
					set(m-1, at(m-2))
				}
			}

		default: // cell-centered (pressure-like) field
			switch bc.Kind {
			case Periodic:
				if side == Lo {
					set(0, at(m-2))
				} else {
					set(m-1, at(1))
				}
			case Dirichlet, Symmetric:
				// Zero Neumann: copy the nearest interior value.
				if side == Lo {
					set(0, at(1))
				} else {
					set(m-1, at(m-2))
				}
			case Pressure:
				if side == Lo {
					set(0, 0)
				} else {
					set(m-1, 0)
				}
			}
		}

		if !nextSkip(idx, ed, axis) {
			return
		}
	}
}

// ApplyAdjoint accumulates the transpose of the homogeneous part of Apply:
// given a gradient buffer with cotangents in the ghost slots, it adds the
// corresponding contributions onto the interior slots and zeroes the ghost
// slots. It is the algebraic transpose of Apply with prescribed data held
// fixed, kept as an independent operation so it can be tested against
// Apply directly.
func ApplyAdjoint(data []float64, ed []int, comp, axis int, side Side, bc Condition) {
	str := extStrides(ed)
	st := str[axis]
	m := ed[axis]
	normal := comp == axis

	idx := make([]int, len(ed))
	for {
		base := 0
		for d := range ed {
			if d != axis {
				base += idx[d] * str[d]
			}
		}
		at := func(i int) float64 { return data[base+i*st] }
		add := func(i int, v float64) { data[base+i*st] += v }
		zero := func(i int) { data[base+i*st] = 0 }

		if normal {
			switch bc.Kind {
			case Periodic:
				if side == Lo {
					add(m-3, at(0))
					zero(0)
				} else {
					add(1, at(m-2))
					add(2, at(m-1))
					zero(m - 2)
					zero(m - 1)
				}
			case Dirichlet, Symmetric:
				if side == Lo {
					add(2, -at(0))
					zero(0)
					zero(1)
				} else {
					add(m-3, -at(m-1))
					zero(m - 1)
					zero(m - 2)
				}
			case Pressure:
				if side == Lo {
					add(1, at(0))
					zero(0)
				} else {
					add(m-2, at(m-1))
					zero(m - 1)
				}
			}
		} else if bc.Kind == Periodic {
			if side == Lo {
				add(m-2, at(0))
				zero(0)
			} else {
				add(1, at(m-1))
				zero(m - 1)
			}
		} else {
			// Tangential velocity and cell-centered fields share the ghost
			// structure; only the coefficient on the interior value differs.
			coeff := ghostCoeff(bc.Kind, comp >= 0)
			if side == Lo {
				add(1, coeff*at(0))
				zero(0)
			} else {
				add(m-2, coeff*at(m-1))
				zero(m - 1)
			}
		}

		if !nextSkip(idx, ed, axis) {
			return
		}
	}
}

// ghostCoeff returns the dependence of a lo/hi ghost slot on its adjacent
// interior slot for non-normal, non-periodic fields.
func ghostCoeff(k Kind, velocity bool) float64 {
	switch k {
	case Dirichlet:
		if velocity {
			return -1 // ghost = 2g - interior
		}
		return 1 // pressure copies the interior value
	case Symmetric:
		return 1
	case Pressure:
		if velocity {
			return 1
		}
		return 0 // pressure ghost pinned to zero
	}
	return 0
}

// extStrides returns the flattening strides of an extended field with the
// first axis fastest.
func extStrides(ed []int) []int {
	str := make([]int, len(ed))
	str[0] = 1
	for d := 1; d < len(ed); d++ {
		str[d] = str[d-1] * ed[d-1]
	}
	return str
}

// nextSkip advances a multi-index over dims, skipping the given axis.
// It reports false once the index space is exhausted.
func nextSkip(idx, dims []int, skip int) bool {
	for d := 0; d < len(dims); d++ {
		if d == skip {
			continue
		}
		idx[d]++
		if idx[d] < dims[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
