package graph

import (
	"github.com/born-ml/convnet/internal/kernels"
	"github.com/born-ml/convnet/internal/matrix"
)

type softmaxLayer struct{}

func (softmaxLayer) fprop(l *Layer, inputs []*matrix.Matrix, _ PassType) {
	kernels.Softmax(inputs[0], l.acts, 0, 1)
}

func (softmaxLayer) bprop(l *Layer, grad *matrix.Matrix, pass PassType) error {
	if l.sendsGradTo(0) {
		target, scale := l.prevGrad(0)
		kernels.SoftmaxGrad(grad, l.acts, target, scale)
	}
	l.TruncActGrads()
	return l.bpropPrev(pass)
}
