package kernels

import (
	"math"

	"github.com/born-ml/convnet/internal/matrix"
	"github.com/born-ml/convnet/internal/parallel"
	"gonum.org/v1/gonum/mat"
)

// PoolType selects the aggregation applied over a pooling window.
type PoolType string

// Pooling types.
const (
	PoolMax PoolType = "max"
	PoolAvg PoolType = "avg"
)

// PoolGeometry describes square pooling windows over a square image.
//
// Window (oy, ox) covers rows Start+oy*Stride ... Start+oy*Stride+SizeX-1
// (likewise for columns), clipped to the image. Start may be negative.
type PoolGeometry struct {
	Channels int
	ImgSize  int
	SizeX    int // Window side
	Start    int // Offset of the first window
	Stride   int
	OutputsX int // Side of the output grid
}

// DefaultOutputsX returns the smallest output grid whose windows reach the
// last image pixel.
func DefaultOutputsX(imgSize, sizeX, start, stride int) int {
	return int(math.Ceil(float64(imgSize-start-sizeX)/float64(stride))) + 1
}

// ImgPixels returns the number of input neurons per case.
func (g PoolGeometry) ImgPixels() int {
	return g.Channels * g.ImgSize * g.ImgSize
}

// Outputs returns the number of output neurons per case.
func (g PoolGeometry) Outputs() int {
	return g.Channels * g.OutputsX * g.OutputsX
}

// Validate panics when some window would fall entirely outside the image.
func (g PoolGeometry) Validate(kernel string) {
	matrix.Check(g.Channels > 0 && g.ImgSize > 0 && g.SizeX > 0 && g.OutputsX > 0,
		kernel, "non-positive geometry %+v", g)
	matrix.Check(g.Stride > 0, kernel, "invalid stride %d", g.Stride)
	matrix.Check(g.Start <= 0 && g.Start+g.SizeX > 0, kernel, "first window misses the image (start %d)", g.Start)
	matrix.Check(g.Start+(g.OutputsX-1)*g.Stride < g.ImgSize, kernel,
		"last window misses the image (outputsX %d)", g.OutputsX)
}

// window returns the clipped [lo, hi) range of output index o along one axis.
func (g PoolGeometry) window(o int) (int, int) {
	lo := g.Start + o*g.Stride
	return max(lo, 0), min(lo+g.SizeX, g.ImgSize)
}

// Pool aggregates images [cases x ImgPixels] into target [cases x Outputs].
// Average pooling divides by the full window area SizeX*SizeX.
func Pool(images, target *matrix.Matrix, g PoolGeometry, typ PoolType, scaleTargets, scaleOutput float64, cfg parallel.Config) {
	g.Validate("pool")
	imgs := images.CaseMajor()
	numCases, pixels := imgs.Dims()
	matrix.Check(pixels == g.ImgPixels(), "pool", "images have %d pixels, geometry wants %d", pixels, g.ImgPixels())
	matrix.Check(typ == PoolMax || typ == PoolAvg, "pool", "unknown pool type %q", typ)

	s, ox := g.ImgSize, g.OutputsX
	area := float64(g.SizeX * g.SizeX)
	out := mat.NewDense(numCases, g.Outputs(), nil)

	parallel.For(numCases, func(n int) {
		img := imgs.RawRowView(n)
		dst := out.RawRowView(n)
		for c := 0; c < g.Channels; c++ {
			plane := img[c*s*s : (c+1)*s*s]
			for oy := 0; oy < ox; oy++ {
				y0, y1 := g.window(oy)
				for oxi := 0; oxi < ox; oxi++ {
					x0, x1 := g.window(oxi)
					acc := math.Inf(-1)
					if typ == PoolAvg {
						acc = 0
					}
					for y := y0; y < y1; y++ {
						for x := x0; x < x1; x++ {
							v := plane[y*s+x]
							if typ == PoolMax {
								acc = math.Max(acc, v)
							} else {
								acc += v
							}
						}
					}
					if typ == PoolAvg {
						acc /= area
					}
					dst[(c*ox+oy)*ox+oxi] = acc
				}
			}
		}
	}, cfg)

	target.Add(out, scaleTargets, scaleOutput)
}

// MaxUndo routes outGrad [cases x Outputs] back to the images: every pixel
// equal to its window's maximum (maxActs) receives that window's gradient.
func MaxUndo(images, maxActs, outGrad, target *matrix.Matrix, g PoolGeometry, scaleTargets, scaleOutput float64, cfg parallel.Config) {
	g.Validate("maxUndo")
	imgs := images.CaseMajor()
	maxes := maxActs.CaseMajor()
	grad := outGrad.CaseMajor()
	numCases, pixels := imgs.Dims()
	matrix.Check(pixels == g.ImgPixels(), "maxUndo", "images have %d pixels, geometry wants %d", pixels, g.ImgPixels())
	mr, mc := maxes.Dims()
	gr, gc := grad.Dims()
	matrix.Check(mr == numCases && gr == numCases && mc == g.Outputs() && gc == g.Outputs(), "maxUndo",
		"maxActs %dx%d, grad %dx%d, want %dx%d", mr, mc, gr, gc, numCases, g.Outputs())

	s, ox := g.ImgSize, g.OutputsX
	out := mat.NewDense(numCases, g.ImgPixels(), nil)

	parallel.For(numCases, func(n int) {
		img, mx, gd, dst := imgs.RawRowView(n), maxes.RawRowView(n), grad.RawRowView(n), out.RawRowView(n)
		for c := 0; c < g.Channels; c++ {
			plane := img[c*s*s : (c+1)*s*s]
			dplane := dst[c*s*s : (c+1)*s*s]
			for oy := 0; oy < ox; oy++ {
				y0, y1 := g.window(oy)
				for oxi := 0; oxi < ox; oxi++ {
					x0, x1 := g.window(oxi)
					o := (c*ox+oy)*ox + oxi
					for y := y0; y < y1; y++ {
						for x := x0; x < x1; x++ {
							if plane[y*s+x] == mx[o] {
								dplane[y*s+x] += gd[o]
							}
						}
					}
				}
			}
		}
	}, cfg)

	target.Add(out, scaleTargets, scaleOutput)
}

// AvgUndo spreads outGrad [cases x Outputs] uniformly over each window,
// dividing by SizeX*SizeX as the forward pass does.
func AvgUndo(outGrad, target *matrix.Matrix, g PoolGeometry, scaleTargets, scaleOutput float64, cfg parallel.Config) {
	g.Validate("avgUndo")
	grad := outGrad.CaseMajor()
	numCases, outputs := grad.Dims()
	matrix.Check(outputs == g.Outputs(), "avgUndo", "grad has %d outputs, geometry wants %d", outputs, g.Outputs())

	s, ox := g.ImgSize, g.OutputsX
	area := float64(g.SizeX * g.SizeX)
	out := mat.NewDense(numCases, g.ImgPixels(), nil)

	parallel.For(numCases, func(n int) {
		gd, dst := grad.RawRowView(n), out.RawRowView(n)
		for c := 0; c < g.Channels; c++ {
			dplane := dst[c*s*s : (c+1)*s*s]
			for oy := 0; oy < ox; oy++ {
				y0, y1 := g.window(oy)
				for oxi := 0; oxi < ox; oxi++ {
					x0, x1 := g.window(oxi)
					v := gd[(c*ox+oy)*ox+oxi] / area
					for y := y0; y < y1; y++ {
						for x := x0; x < x1; x++ {
							dplane[y*s+x] += v
						}
					}
				}
			}
		}
	}, cfg)

	target.Add(out, scaleTargets, scaleOutput)
}
