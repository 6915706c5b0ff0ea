package recordvec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeader struct{ tag int }

func TestVectorInitAndAt(t *testing.T) {
	var v Vector[fakeHeader]
	v.Init(10, 8, func() fakeHeader { return fakeHeader{tag: 42} })
	require.Equal(t, 10, v.Len())
	for i := 0; i < v.Len(); i++ {
		rec := v.At(i)
		assert.Equal(t, 42, rec.Header.tag)
		assert.Len(t, rec.Payload, 8)
	}
}

func TestVectorZeroPayload(t *testing.T) {
	var v Vector[fakeHeader]
	v.Init(4, 0, nil)
	assert.Nil(t, v.At(0).Payload)
}

func TestPartitionedLazyAllocationAndIndexing(t *testing.T) {
	pv := InitPartitioned(4, 100, 8, func() fakeHeader { return fakeHeader{} })
	rec := pv.At(250) // partition 2, local offset 50
	rec.Header.tag = 7
	again := pv.At(250)
	assert.Equal(t, 7, again.Header.tag)
	assert.Equal(t, 400, pv.Len())
}
