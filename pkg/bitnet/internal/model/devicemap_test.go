package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

func TestAutoPlaceLayersFitsEverything(t *testing.T) {
	// capacity 5GiB: budget = 5GiB - max(1GiB, 1GiB floor) = 4GiB, plenty
	// of room for three 1MiB layers.
	sizes := []int64{1 << 20, 1 << 20, 1 << 20}
	placement := AutoPlaceLayers(sizes, 5<<30)
	for _, d := range placement {
		assert.Equal(t, tensor.Accelerator, d)
	}
}

func TestAutoPlaceLayersCapacityBelowFloorKeepsAllOnHost(t *testing.T) {
	// capacity 10MiB: the 1GiB floor alone exceeds capacity, so budget
	// clamps to 0 and every layer must land on host.
	sizes := []int64{1 << 20, 1 << 20, 1 << 20}
	placement := AutoPlaceLayers(sizes, 10<<20)
	for _, d := range placement {
		assert.Equal(t, tensor.Host, d)
	}
}

func TestAutoPlaceLayersSpillsToHost(t *testing.T) {
	capacity := int64(2) << 30 // 2GiB
	// budget = capacity - max(0.2*capacity, 1GiB) = capacity - max(409.6MiB, 1GiB) = 2GiB-1GiB = 1GiB
	sizes := []int64{700 << 20, 700 << 20, 700 << 20} // 700MiB each
	placement := AutoPlaceLayers(sizes, capacity)
	assert.Equal(t, tensor.Accelerator, placement[0])
	assert.Equal(t, tensor.Host, placement[1])
	assert.Equal(t, tensor.Host, placement[2])
}
