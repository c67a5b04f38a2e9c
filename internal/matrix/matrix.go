// Package matrix provides the dense numeric buffer consumed by the layer graph.
//
// A Matrix owns (or aliases) row-major storage backed by gonum's mat.Dense and
// carries a transpose view flag. The flag never moves data: it only changes how
// the logical shape is reported and how logical (row, col) coordinates map onto
// storage. Layers store activations case-major (one row per case); a layer that
// runs transposed keeps its buffers neuron-major and flips the flag so every
// consumer still sees the case-major view.
package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense float64 buffer with a transpose view flag.
//
// The zero value is an empty matrix.
type Matrix struct {
	dense *mat.Dense
	trans bool
}

// New allocates a zeroed rows x cols matrix.
func New(rows, cols int) *Matrix {
	checkShape("new", rows, cols)
	return &Matrix{dense: mat.NewDense(rows, cols, nil)}
}

// FromSlice wraps data (row-major, len rows*cols) without copying.
func FromSlice(rows, cols int, data []float64) *Matrix {
	checkShape("fromSlice", rows, cols)
	if len(data) != rows*cols {
		panic(&LaunchError{Kernel: "fromSlice", Msg: fmt.Sprintf("data length %d != %dx%d", len(data), rows, cols)})
	}
	return &Matrix{dense: mat.NewDense(rows, cols, data)}
}

// FromDense wraps d without copying.
func FromDense(d *mat.Dense) *Matrix {
	return &Matrix{dense: d}
}

// Alias returns a non-owning view that shares storage and orientation with m.
func (m *Matrix) Alias() *Matrix {
	return &Matrix{dense: m.dense, trans: m.trans}
}

// Empty reports whether the matrix has no storage.
func (m *Matrix) Empty() bool {
	return m == nil || m.dense == nil
}

// Rows returns the logical number of rows.
func (m *Matrix) Rows() int {
	r, _ := m.Dims()
	return r
}

// Cols returns the logical number of columns.
func (m *Matrix) Cols() int {
	_, c := m.Dims()
	return c
}

// Dims returns the logical shape.
func (m *Matrix) Dims() (rows, cols int) {
	if m.Empty() {
		return 0, 0
	}
	r, c := m.dense.Dims()
	if m.trans {
		return c, r
	}
	return r, c
}

// NumElements returns rows*cols.
func (m *Matrix) NumElements() int {
	r, c := m.Dims()
	return r * c
}

// IsTrans reports the transpose view flag.
func (m *Matrix) IsTrans() bool {
	return m.trans
}

// SetTrans sets the transpose view flag.
func (m *Matrix) SetTrans(trans bool) {
	m.trans = trans
}

// Transpose toggles the transpose view flag.
func (m *Matrix) Transpose() {
	m.trans = !m.trans
}

// Dense returns the storage. The storage shape is the logical shape
// transposed when IsTrans is set.
func (m *Matrix) Dense() *mat.Dense {
	return m.dense
}

// View returns the logical view of m as a gonum matrix.
func (m *Matrix) View() mat.Matrix {
	if m.trans {
		return m.dense.T()
	}
	return m.dense
}

// CaseMajor returns a dense matrix with the logical shape. When the view is not
// transposed this is the storage itself; otherwise a transposed copy.
func (m *Matrix) CaseMajor() *mat.Dense {
	if !m.trans {
		return m.dense
	}
	var d mat.Dense
	d.CloneFrom(m.dense.T())
	return &d
}

// Contiguous reports whether the storage rows are packed without gaps.
func (m *Matrix) Contiguous() bool {
	if m.Empty() {
		return true
	}
	raw := m.dense.RawMatrix()
	return raw.Stride == raw.Cols
}

// Raw returns the storage slice. Only meaningful for contiguous matrices.
func (m *Matrix) Raw() []float64 {
	if m.Empty() {
		return nil
	}
	return m.dense.RawMatrix().Data
}

// At returns the element at logical (i, j).
func (m *Matrix) At(i, j int) float64 {
	if m.trans {
		return m.dense.At(j, i)
	}
	return m.dense.At(i, j)
}

// Set stores v at logical (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	if m.trans {
		m.dense.Set(j, i, v)
		return
	}
	m.dense.Set(i, j, v)
}

// Resize makes m a zeroed matrix of the given logical shape unless it already
// has that shape, in which case the contents are kept.
func (m *Matrix) Resize(rows, cols int) {
	checkShape("resize", rows, cols)
	if r, c := m.Dims(); r == rows && c == cols {
		return
	}
	if m.trans {
		rows, cols = cols, rows
	}
	m.dense = mat.NewDense(rows, cols, nil)
}

// ResizeLike resizes m to the logical shape of other.
func (m *Matrix) ResizeLike(other *Matrix) {
	m.Resize(other.Dims())
}

// Truncate releases the storage.
func (m *Matrix) Truncate() {
	m.dense = nil
}

// Zero sets every element to zero.
func (m *Matrix) Zero() {
	if !m.Empty() {
		m.dense.Zero()
	}
}

// Add computes m = scaleThis*m + scaleSrc*src over the logical view.
//
// When scaleThis is zero m is overwritten (resized if needed), so stale or
// non-finite contents never leak into the result.
func (m *Matrix) Add(src mat.Matrix, scaleThis, scaleSrc float64) {
	r, c := src.Dims()
	if scaleThis == 0 {
		m.Resize(r, c)
	} else if mr, mc := m.Dims(); mr != r || mc != c {
		panic(&LaunchError{Kernel: "add", Msg: fmt.Sprintf("shape %dx%d != %dx%d", mr, mc, r, c)})
	}
	s := src
	if m.trans {
		s = src.T()
	}
	if scaleThis == 0 {
		m.dense.Scale(scaleSrc, s)
		return
	}
	if scaleThis != 1 {
		m.dense.Scale(scaleThis, m.dense)
	}
	var scaled mat.Dense
	scaled.Scale(scaleSrc, s)
	m.dense.Add(m.dense, &scaled)
}

// AddProduct computes m = scaleThis*m + scaleProd*(a*b).
func (m *Matrix) AddProduct(a, b mat.Matrix, scaleThis, scaleProd float64) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(&LaunchError{Kernel: "addProduct", Msg: fmt.Sprintf("inner dimensions %dx%d * %dx%d", ar, ac, br, bc)})
	}
	var prod mat.Dense
	prod.Mul(a, b)
	m.Add(&prod, scaleThis, scaleProd)
}

// CopyFrom overwrites m with the logical contents of src.
func (m *Matrix) CopyFrom(src *Matrix) {
	m.Add(src.View(), 0, 1)
}

// Clone returns a case-major deep copy.
func (m *Matrix) Clone() *Matrix {
	var d mat.Dense
	d.CloneFrom(m.View())
	return &Matrix{dense: &d}
}

// Scale multiplies every element by f.
func (m *Matrix) Scale(f float64) {
	m.dense.Scale(f, m.dense)
}

// Apply replaces every element v with fn(v).
func (m *Matrix) Apply(fn func(v float64) float64) {
	m.dense.Apply(func(_, _ int, v float64) float64 { return fn(v) }, m.dense)
}

// AddRowVector adds scale*vec to every logical row. vec must be 1 x Cols.
func (m *Matrix) AddRowVector(vec mat.Matrix, scale float64) {
	vr, vc := vec.Dims()
	rows, cols := m.Dims()
	if vr != 1 || vc != cols {
		panic(&LaunchError{Kernel: "addRowVector", Msg: fmt.Sprintf("vector %dx%d for %dx%d matrix", vr, vc, rows, cols)})
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, m.At(i, j)+scale*vec.At(0, j))
		}
	}
}

// SumRows reduces along the row (case) axis and returns a 1 x Cols matrix.
func (m *Matrix) SumRows() *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(1, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(0, j, out.At(0, j)+m.At(i, j))
		}
	}
	return out
}

// Norm returns the Frobenius norm.
func (m *Matrix) Norm() float64 {
	return mat.Norm(m.dense, 2)
}

// Sum returns the sum of all elements.
func (m *Matrix) Sum() float64 {
	return mat.Sum(m.dense)
}

// String formats the logical view for diagnostics.
func (m *Matrix) String() string {
	if m.Empty() {
		return "[]"
	}
	return fmt.Sprintf("%v", mat.Formatted(m.View(), mat.Squeeze()))
}

func checkShape(kernel string, rows, cols int) {
	if rows <= 0 || cols <= 0 {
		panic(&LaunchError{Kernel: kernel, Msg: fmt.Sprintf("invalid shape %dx%d", rows, cols)})
	}
}
