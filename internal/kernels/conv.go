package kernels

import (
	"github.com/born-ml/convnet/internal/matrix"
	"github.com/born-ml/convnet/internal/parallel"
	"gonum.org/v1/gonum/mat"
)

// ConvGeometry describes a square convolution.
//
// The output grid is ModulesX x ModulesX with
//
//	ModulesX = (ImgSize + 2*Padding - FilterSize)/Stride + 1
type ConvGeometry struct {
	Channels   int // Input channels
	ImgSize    int // Input image side
	FilterSize int // Filter side
	Stride     int
	Padding    int // Zero padding on every border
	NumFilters int
}

// ModulesX returns the side of the output grid.
func (g ConvGeometry) ModulesX() int {
	return (g.ImgSize+2*g.Padding-g.FilterSize)/g.Stride + 1
}

// NumModules returns the number of output locations per filter.
func (g ConvGeometry) NumModules() int {
	m := g.ModulesX()
	return m * m
}

// ImgPixels returns the number of input neurons per case.
func (g ConvGeometry) ImgPixels() int {
	return g.Channels * g.ImgSize * g.ImgSize
}

// FilterPixels returns the number of weights per filter.
func (g ConvGeometry) FilterPixels() int {
	return g.Channels * g.FilterSize * g.FilterSize
}

// Outputs returns the number of output neurons per case.
func (g ConvGeometry) Outputs() int {
	return g.NumFilters * g.NumModules()
}

// Validate panics when the geometry cannot produce any output.
func (g ConvGeometry) Validate(kernel string) {
	matrix.Check(g.Channels > 0 && g.ImgSize > 0 && g.FilterSize > 0 && g.NumFilters > 0,
		kernel, "non-positive geometry %+v", g)
	matrix.Check(g.Stride > 0, kernel, "invalid stride %d", g.Stride)
	matrix.Check(g.Padding >= 0, kernel, "negative padding %d", g.Padding)
	matrix.Check(g.ModulesX() > 0, kernel, "filter %d too large for image %d with padding %d",
		g.FilterSize, g.ImgSize, g.Padding)
}

// FilterActs convolves images [cases x ImgPixels] with filters
// [NumFilters x FilterPixels] into target [cases x Outputs].
//
// Each case is unrolled with im2col into a [NumModules x FilterPixels]
// patch matrix so the convolution becomes filters * patches^T.
func FilterActs(images, filters, target *matrix.Matrix, g ConvGeometry, scaleTargets, scaleOutput float64, cfg parallel.Config) {
	g.Validate("filterActs")
	imgs := images.CaseMajor()
	f := filters.CaseMajor()
	numCases, pixels := imgs.Dims()
	fr, fc := f.Dims()
	matrix.Check(pixels == g.ImgPixels(), "filterActs", "images have %d pixels, geometry wants %d", pixels, g.ImgPixels())
	matrix.Check(fr == g.NumFilters && fc == g.FilterPixels(), "filterActs",
		"filters %dx%d, geometry wants %dx%d", fr, fc, g.NumFilters, g.FilterPixels())

	numModules := g.NumModules()
	out := mat.NewDense(numCases, g.Outputs(), nil)

	parallel.ForChunks(numCases, func(start, end int) {
		col := mat.NewDense(numModules, g.FilterPixels(), nil)
		var prod mat.Dense
		for n := start; n < end; n++ {
			im2col(col, imgs.RawRowView(n), g)
			prod.Mul(f, col.T()) // [NumFilters x NumModules]
			copy(out.RawRowView(n), prod.RawMatrix().Data)
		}
	}, cfg)

	target.Add(out, scaleTargets, scaleOutput)
}

// ImgActs computes the gradient with respect to the images of a convolution
// ("deconvolution"): hidActs [cases x Outputs] are spread back through filters
// into target [cases x ImgPixels].
func ImgActs(hidActs, filters, target *matrix.Matrix, g ConvGeometry, scaleTargets, scaleOutput float64, cfg parallel.Config) {
	g.Validate("imgActs")
	hid := hidActs.CaseMajor()
	f := filters.CaseMajor()
	numCases, outputs := hid.Dims()
	matrix.Check(outputs == g.Outputs(), "imgActs", "hidActs have %d outputs, geometry wants %d", outputs, g.Outputs())
	fr, fc := f.Dims()
	matrix.Check(fr == g.NumFilters && fc == g.FilterPixels(), "imgActs",
		"filters %dx%d, geometry wants %dx%d", fr, fc, g.NumFilters, g.FilterPixels())

	numModules := g.NumModules()
	out := mat.NewDense(numCases, g.ImgPixels(), nil)

	parallel.ForChunks(numCases, func(start, end int) {
		var colGrad mat.Dense
		for n := start; n < end; n++ {
			h := mat.NewDense(g.NumFilters, numModules, hid.RawRowView(n))
			colGrad.Mul(h.T(), f) // [NumModules x FilterPixels]
			col2im(out.RawRowView(n), &colGrad, g)
		}
	}, cfg)

	target.Add(out, scaleTargets, scaleOutput)
}

// WeightActs computes the filter gradient sum_cases hid * patches into
// target [NumFilters x FilterPixels].
//
// partialSum selects how many output locations are reduced per chunk. When it
// is zero or covers every location the sum is formed in a single pass;
// otherwise NumModules/partialSum chunk gradients are formed independently
// and then reduced. partialSum must divide NumModules.
func WeightActs(images, hidActs, target *matrix.Matrix, g ConvGeometry, partialSum int, scaleTargets, scaleOutput float64, cfg parallel.Config) {
	g.Validate("weightActs")
	imgs := images.CaseMajor()
	hid := hidActs.CaseMajor()
	numCases, pixels := imgs.Dims()
	hr, hc := hid.Dims()
	numModules := g.NumModules()
	matrix.Check(pixels == g.ImgPixels(), "weightActs", "images have %d pixels, geometry wants %d", pixels, g.ImgPixels())
	matrix.Check(hr == numCases && hc == g.Outputs(), "weightActs",
		"hidActs %dx%d, want %dx%d", hr, hc, numCases, g.Outputs())
	matrix.Check(partialSum >= 0 && (partialSum == 0 || numModules%partialSum == 0), "weightActs",
		"partialSum %d does not divide %d modules", partialSum, numModules)

	// Unroll every case once; chunks slice into these.
	cols := make([]*mat.Dense, numCases)
	parallel.For(numCases, func(n int) {
		cols[n] = mat.NewDense(numModules, g.FilterPixels(), nil)
		im2col(cols[n], imgs.RawRowView(n), g)
	}, cfg)

	var out *mat.Dense
	if partialSum == 0 || partialSum == numModules {
		out = weightActsRange(hid, cols, g, 0, numModules)
	} else {
		numChunks := numModules / partialSum
		partials := make([]*mat.Dense, numChunks)
		parallel.For(numChunks, func(k int) {
			partials[k] = weightActsRange(hid, cols, g, k*partialSum, (k+1)*partialSum)
		}, cfg)
		out = partials[0]
		for _, p := range partials[1:] {
			out.Add(out, p)
		}
	}

	target.Add(out, scaleTargets, scaleOutput)
}

// weightActsRange sums hid[:, filter, m] * patch[m, :] over every case and
// every module m in [from, to).
func weightActsRange(hid *mat.Dense, cols []*mat.Dense, g ConvGeometry, from, to int) *mat.Dense {
	numModules := g.NumModules()
	acc := mat.NewDense(g.NumFilters, g.FilterPixels(), nil)
	var prod mat.Dense
	for n, col := range cols {
		h := mat.NewDense(g.NumFilters, numModules, hid.RawRowView(n))
		hs := h.Slice(0, g.NumFilters, from, to)
		cs := col.Slice(from, to, 0, g.FilterPixels())
		prod.Mul(hs, cs)
		acc.Add(acc, &prod)
	}
	return acc
}

// im2col writes one row per output module holding the input patch the
// module sees; out-of-image taps are zero.
func im2col(col *mat.Dense, img []float64, g ConvGeometry) {
	s, fs, mx := g.ImgSize, g.FilterSize, g.ModulesX()
	for my := 0; my < mx; my++ {
		for mxi := 0; mxi < mx; mxi++ {
			row := col.RawRowView(my*mx + mxi)
			y0 := my*g.Stride - g.Padding
			x0 := mxi*g.Stride - g.Padding
			idx := 0
			for c := 0; c < g.Channels; c++ {
				plane := img[c*s*s : (c+1)*s*s]
				for ky := 0; ky < fs; ky++ {
					y := y0 + ky
					for kx := 0; kx < fs; kx++ {
						x := x0 + kx
						if y >= 0 && y < s && x >= 0 && x < s {
							row[idx] = plane[y*s+x]
						} else {
							row[idx] = 0
						}
						idx++
					}
				}
			}
		}
	}
}

// col2im scatter-adds patch gradients back into an image row.
func col2im(img []float64, colGrad *mat.Dense, g ConvGeometry) {
	s, fs, mx := g.ImgSize, g.FilterSize, g.ModulesX()
	for my := 0; my < mx; my++ {
		for mxi := 0; mxi < mx; mxi++ {
			row := colGrad.RawRowView(my*mx + mxi)
			y0 := my*g.Stride - g.Padding
			x0 := mxi*g.Stride - g.Padding
			idx := 0
			for c := 0; c < g.Channels; c++ {
				plane := img[c*s*s : (c+1)*s*s]
				for ky := 0; ky < fs; ky++ {
					y := y0 + ky
					for kx := 0; kx < fs; kx++ {
						x := x0 + kx
						if y >= 0 && y < s && x >= 0 && x < s {
							plane[y*s+x] += row[idx]
						}
						idx++
					}
				}
			}
		}
	}
}
