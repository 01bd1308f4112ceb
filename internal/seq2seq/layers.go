package seq2seq

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// builder threads the first graph construction error through a chain of ops.
type builder struct {
	g   *gorgonia.ExprGraph
	err error
}

func (b *builder) param(name string, t *tensor.Dense) *gorgonia.Node {
	return gorgonia.NewMatrix(b.g, tensor.Float64,
		gorgonia.WithShape(t.Shape()...),
		gorgonia.WithName(name),
		gorgonia.WithValue(t),
	)
}

// input declares a matrix that is bound with gorgonia.Let before every run.
func (b *builder) input(name string, rows, cols int) *gorgonia.Node {
	return gorgonia.NewMatrix(b.g, tensor.Float64,
		gorgonia.WithShape(rows, cols),
		gorgonia.WithName(name),
	)
}

func (b *builder) apply(op func() (*gorgonia.Node, error)) *gorgonia.Node {
	if b.err != nil {
		return nil
	}
	n, err := op()
	if err != nil {
		b.err = err
		return nil
	}
	return n
}

func (b *builder) mul(x, y *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.Mul(x, y) })
}

func (b *builder) add(x, y *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.Add(x, y) })
}

func (b *builder) hadamard(x, y *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.HadamardProd(x, y) })
}

func (b *builder) concat(xs ...*gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.Concat(1, xs...) })
}

func (b *builder) sigmoid(x *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.Sigmoid(x) })
}

func (b *builder) tanh(x *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.Tanh(x) })
}

func (b *builder) relu(x *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.Rectify(x) })
}

func (b *builder) softmax(x *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.SoftMax(x) })
}

func (b *builder) log(x *gorgonia.Node) *gorgonia.Node {
	return b.apply(func() (*gorgonia.Node, error) { return gorgonia.Log(x) })
}

// embedding multiplies a one-hot row by the embedding table.
type embedding struct {
	weights *gorgonia.Node
	vocab   int
}

func (b *builder) embedding(name string, t *tensor.Dense) embedding {
	return embedding{weights: b.param(name, t), vocab: t.Shape()[0]}
}

func (e embedding) lookup(b *builder, x *gorgonia.Node) *gorgonia.Node {
	return b.mul(x, e.weights)
}

type linear struct {
	w, bias *gorgonia.Node
}

func (b *builder) linear(name string, l Linear) linear {
	return linear{w: b.param(name+"_w", l.W), bias: b.param(name+"_b", l.B)}
}

func (l linear) fwd(b *builder, x *gorgonia.Node) *gorgonia.Node {
	return b.add(b.mul(x, l.w), l.bias)
}

type lstmCell struct {
	w, u, bias [numGates]*gorgonia.Node
}

func (b *builder) lstm(name string, l LSTM) lstmCell {
	var c lstmCell
	for k := 0; k < numGates; k++ {
		c.w[k] = b.param(fmt.Sprintf("%s_w%d", name, k), l.W[k])
		c.u[k] = b.param(fmt.Sprintf("%s_u%d", name, k), l.U[k])
		c.bias[k] = b.param(fmt.Sprintf("%s_b%d", name, k), l.B[k])
	}
	return c
}

func (c lstmCell) gate(b *builder, k int, x, h *gorgonia.Node) *gorgonia.Node {
	return b.add(b.add(b.mul(x, c.w[k]), b.mul(h, c.u[k])), c.bias[k])
}

// step advances the cell one position. The cell output equals the new h.
func (c lstmCell) step(b *builder, x, h, cell *gorgonia.Node) (hNext, cellNext *gorgonia.Node) {
	i := b.sigmoid(c.gate(b, gateInput, x, h))
	f := b.sigmoid(c.gate(b, gateForget, x, h))
	g := b.tanh(c.gate(b, gateCell, x, h))
	o := b.sigmoid(c.gate(b, gateOutput, x, h))

	cellNext = b.add(b.hadamard(f, cell), b.hadamard(i, g))
	hNext = b.hadamard(o, b.tanh(cellNext))
	return hNext, cellNext
}

// letRow binds a row vector to an input node.
func letRow(n *gorgonia.Node, data []float64) error {
	return gorgonia.Let(n, tensor.New(tensor.WithShape(1, len(data)), tensor.WithBacking(data)))
}

func oneHot(size, id int) []float64 {
	v := make([]float64, size)
	v[id] = 1
	return v
}

// valueOf copies a node's value out of the machine's memory.
func valueOf(n *gorgonia.Node) ([]float64, error) {
	v := n.Value()
	if v == nil {
		return nil, fmt.Errorf("%s has no value", n.Name())
	}
	data, ok := v.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("%s holds %T, want []float64", n.Name(), v.Data())
	}
	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}
