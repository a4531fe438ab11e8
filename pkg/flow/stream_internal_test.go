package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamStep(t *testing.T) {
	anchor := &Port{}
	other := &Port{}

	root := &StreamNode{}
	a := &StreamNode{source: anchor, base: root}
	aa := &StreamNode{source: anchor, base: a}
	b := &StreamNode{source: other, base: root}
	floating := &StreamNode{}
	deepFloating := &StreamNode{base: &StreamNode{base: &StreamNode{}}}

	tests := []struct {
		name string
		x, y *StreamNode
		want int
	}{
		{"identical", a, a, 0},
		{"misplaced siblings", a, b, -1},
		{"nested in the same chain", aa, a, 1},
		{"chain contains the other", a, aa, 1},
		{"floating no deeper", floating, aa, 0},
		{"floating deeper", deepFloating, a, 1},
		{"root against anchored", root, a, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StreamStep(tt.x, tt.y))
		})
	}
}

func TestStreamNode_Depths(t *testing.T) {
	p := &Port{}
	root := &StreamNode{}
	mid := &StreamNode{base: root}
	leaf := &StreamNode{source: p, base: mid}
	top := &StreamNode{source: p, base: &StreamNode{base: &StreamNode{}}}

	assert.Equal(t, 1, root.Depth())
	assert.Equal(t, 3, leaf.Depth())
	assert.Equal(t, 1, leaf.FixedDepth())
	assert.Equal(t, 0, mid.FixedDepth())
	assert.Same(t, root, leaf.Root())
	assert.True(t, root.IsPlaceholder())
	assert.False(t, leaf.IsPlaceholder())

	shallowAnchor := &StreamNode{base: &StreamNode{source: p, base: &StreamNode{}}}
	assert.Equal(t, 2, shallowAnchor.FixedDepth())
	assert.Equal(t, 1, top.FixedDepth())
}

func TestMergeStreams(t *testing.T) {
	p := &Port{}
	root := &StreamNode{}
	shallow := &StreamNode{base: root}
	deep := &StreamNode{source: p, base: shallow}
	anchoredHigh := &StreamNode{base: &StreamNode{source: p, base: &StreamNode{}}}
	anchoredLow := &StreamNode{source: p, base: &StreamNode{base: &StreamNode{}}}

	assert.Same(t, deep, mergeStreams(nil, deep))
	assert.Same(t, deep, mergeStreams(deep, nil))
	assert.Same(t, deep, mergeStreams(shallow, deep))
	assert.Same(t, deep, mergeStreams(deep, shallow))
	assert.Same(t, anchoredHigh, mergeStreams(anchoredLow, anchoredHigh), "ties prefer the shallower anchor")
	assert.Same(t, anchoredHigh, mergeStreams(anchoredHigh, anchoredLow))
}
