package grid

import "fmt"

// AddScalar adds s to every node.
func (g *Grid) AddScalar(s float32) *Grid {
	for i := range g.values {
		g.values[i] += s
	}
	return g
}

// SubScalar subtracts s from every node.
func (g *Grid) SubScalar(s float32) *Grid {
	for i := range g.values {
		g.values[i] -= s
	}
	return g
}

// MulScalar multiplies every node by s.
func (g *Grid) MulScalar(s float32) *Grid {
	for i := range g.values {
		g.values[i] *= s
	}
	return g
}

// DivScalar divides every node by s. Division by zero follows IEEE rules.
func (g *Grid) DivScalar(s float32) *Grid {
	for i := range g.values {
		g.values[i] /= s
	}
	return g
}

// Add adds o elementwise into g.
func (g *Grid) Add(o *Grid) (*Grid, error) {
	return g.combine(o, func(a, b float32) float32 { return a + b })
}

// Sub subtracts o elementwise from g.
func (g *Grid) Sub(o *Grid) (*Grid, error) {
	return g.combine(o, func(a, b float32) float32 { return a - b })
}

// Mul multiplies g elementwise by o.
func (g *Grid) Mul(o *Grid) (*Grid, error) {
	return g.combine(o, func(a, b float32) float32 { return a * b })
}

// Div divides g elementwise by o.
func (g *Grid) Div(o *Grid) (*Grid, error) {
	return g.combine(o, func(a, b float32) float32 { return a / b })
}

func (g *Grid) combine(o *Grid, op func(a, b float32) float32) (*Grid, error) {
	if o == nil || !g.SameShape(o) {
		var shape any = "nil"
		if o != nil {
			shape = o.shape
		}
		return nil, fmt.Errorf("%w: operand shape %v does not match %v", ErrShape, shape, g.shape)
	}
	for i, v := range o.values {
		g.values[i] = op(g.values[i], v)
	}
	return g, nil
}

// Reciprocal replaces every node with 1/value, converting between slowness
// and velocity.
func (g *Grid) Reciprocal() *Grid {
	for i, v := range g.values {
		g.values[i] = 1 / v
	}
	return g
}
