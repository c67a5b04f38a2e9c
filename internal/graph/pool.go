package graph

import (
	"github.com/born-ml/convnet/internal/kernels"
	"github.com/born-ml/convnet/internal/matrix"
)

type poolLayer struct {
	geom kernels.PoolGeometry
	typ  kernels.PoolType
}

func (p *poolLayer) fprop(l *Layer, inputs []*matrix.Matrix, _ PassType) {
	kernels.Pool(inputs[0], l.acts, p.geom, p.typ, 0, 1, l.graph.cfg.Parallel)
}

func (p *poolLayer) bprop(l *Layer, grad *matrix.Matrix, pass PassType) error {
	if l.sendsGradTo(0) {
		cfg := l.graph.cfg.Parallel
		target, scale := l.prevGrad(0)
		switch p.typ {
		case kernels.PoolMax:
			kernels.MaxUndo(l.inputs()[0], l.acts, grad, target, p.geom, scale, 1, cfg)
		default:
			kernels.AvgUndo(grad, target, p.geom, scale, 1, cfg)
		}
	}
	l.TruncActGrads()
	return l.bpropPrev(pass)
}

func newPool(g *Graph, l *Layer, d *declCtx) (variant, error) {
	decl := d.decl
	stride := decl.Stride
	if stride == 0 {
		stride = decl.SizeX
	}
	outputsX := decl.OutputsX
	if outputsX == 0 {
		outputsX = kernels.DefaultOutputsX(decl.ImgSize, decl.SizeX, decl.Start, stride)
	}
	geom := kernels.PoolGeometry{
		Channels: decl.Channels,
		ImgSize:  decl.ImgSize,
		SizeX:    decl.SizeX,
		Start:    decl.Start,
		Stride:   stride,
		OutputsX: outputsX,
	}
	if decl.Start+decl.SizeX <= 0 || outputsX <= 0 || geom.Start+(outputsX-1)*stride >= geom.ImgSize {
		return nil, d.fail("pooling windows fall outside the %dx%d image", geom.ImgSize, geom.ImgSize)
	}
	if err := g.imageInput(l, d, geom.ImgPixels()); err != nil {
		return nil, err
	}
	l.outputs = geom.Outputs()
	return &poolLayer{geom: geom, typ: kernels.PoolType(decl.Pool)}, nil
}
