package model

import "github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"

// headroomFraction and headroomFloor implement the auto-placement
// heuristic's memory reservation (§4.8): never plan to use more than 80%
// of reported accelerator capacity, and always leave at least 1GiB free
// regardless of how large that capacity is.
const (
	headroomFraction = 0.20
	headroomFloorBytes = 1 << 30
)

// budgetFor returns the number of bytes the auto-placement heuristic is
// allowed to spend out of a reported accelerator capacity.
func budgetFor(capacityBytes int64) int64 {
	reserved := int64(float64(capacityBytes) * headroomFraction)
	if reserved < headroomFloorBytes {
		reserved = headroomFloorBytes
	}
	budget := capacityBytes - reserved
	if budget < 0 {
		return 0
	}
	return budget
}

// AutoPlaceLayers assigns each layer (given in order, by its weight size
// in bytes) to the accelerator until the memory budget derived from
// capacityBytes would be exceeded, and every later layer to the host. This
// packs leading layers onto the accelerator, matching the loader's
// top-down forward pass order, rather than spreading layers evenly.
func AutoPlaceLayers(layerSizesBytes []int64, capacityBytes int64) []tensor.Device {
	budget := budgetFor(capacityBytes)
	placement := make([]tensor.Device, len(layerSizesBytes))
	var used int64
	for i, size := range layerSizesBytes {
		if used+size <= budget {
			placement[i] = tensor.Accelerator
			used += size
		} else {
			placement[i] = tensor.Host
		}
	}
	return placement
}
