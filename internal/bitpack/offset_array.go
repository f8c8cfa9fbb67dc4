// Package bitpack provides compact read-only storage for arrays of
// monotonically increasing 64-bit offsets, such as the instruction indices
// in a module's DEBUG section.
package bitpack

import "math"

// OffsetArray is a read-only view over an array of 64-bit offsets.
type OffsetArray interface {
	// Index returns the value at position i.
	//
	// Complexity may range from O(1) to O(n) depending on the underlying
	// representation.
	Index(i int) uint64
	// Len returns the number of offsets in the array, in O(1).
	Len() int
}

// Len is a nil-safe helper: a nil OffsetArray has length zero.
func Len(array OffsetArray) int {
	if array != nil {
		return array.Len()
	}
	return 0
}

// NewOffsetArray builds an array of offsets from values. The slice is
// copied; the caller's backing array is never retained.
//
// The chosen representation applies frame-of-reference delta encoding:
// each value is stored as its delta from the previous one, using the
// smallest fixed-width integer that can hold the largest delta observed.
// This is a good fit for debug-line tables, where instruction indices are
// emitted in strictly increasing order by the code generator, so deltas
// tend to be small even when the absolute instruction index is not.
//
// See https://lemire.me/blog/2012/02/08/effective-compression-using-frame-of-reference-and-delta-coding/
func NewOffsetArray(values []uint64) OffsetArray {
	if len(values) == 0 {
		return emptyOffsetArray{}
	}
	if len(values) <= smallOffsetArrayCapacity {
		return newSmallOffsetArray(values)
	}

	maxDelta := uint64(0)
	lastValue := values[0]
	for _, value := range values[1:] {
		if delta := value - lastValue; delta > maxDelta {
			maxDelta = delta
		}
		lastValue = value
	}

	switch {
	case maxDelta > math.MaxUint32:
		return newPlainOffsetArray(values)
	case maxDelta > math.MaxUint16:
		return newDeltaOffsetArray[uint32](values)
	case maxDelta > math.MaxUint8:
		return newDeltaOffsetArray[uint16](values)
	default:
		return newDeltaOffsetArray[uint8](values)
	}
}

type plainOffsetArray struct {
	values []uint64
}

func newPlainOffsetArray(values []uint64) *plainOffsetArray {
	a := &plainOffsetArray{values: make([]uint64, len(values))}
	copy(a.values, values)
	return a
}

func (a *plainOffsetArray) Index(i int) uint64 { return a.values[i] }
func (a *plainOffsetArray) Len() int           { return len(a.values) }

type emptyOffsetArray struct{}

func (emptyOffsetArray) Index(int) uint64 { panic("bitpack: index out of bounds") }
func (emptyOffsetArray) Len() int         { return 0 }

// smallOffsetArrayCapacity is the point below which a fixed-size array on
// the stack beats any encoding scheme: most methods have a handful of debug
// entries, not thousands.
const smallOffsetArrayCapacity = 7

type smallOffsetArray struct {
	length int
	values [smallOffsetArrayCapacity]uint64
}

func newSmallOffsetArray(values []uint64) *smallOffsetArray {
	a := &smallOffsetArray{length: len(values)}
	copy(a.values[:], values)
	return a
}

func (a *smallOffsetArray) Index(i int) uint64 {
	if i < 0 || i >= a.length {
		panic("bitpack: index out of bounds")
	}
	return a.values[i]
}

func (a *smallOffsetArray) Len() int { return a.length }

type deltaWidth interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type deltaOffsetArray[T deltaWidth] struct {
	deltas     []T
	firstValue uint64
}

func newDeltaOffsetArray[T deltaWidth](values []uint64) *deltaOffsetArray[T] {
	a := &deltaOffsetArray[T]{
		deltas:     make([]T, len(values)-1),
		firstValue: values[0],
	}
	lastValue := values[0]
	for i, value := range values[1:] {
		a.deltas[i] = T(value - lastValue)
		lastValue = value
	}
	return a
}

func (a *deltaOffsetArray[T]) Index(i int) uint64 {
	if i < 0 || i >= a.Len() {
		panic("bitpack: index out of bounds")
	}
	value := a.firstValue
	for _, delta := range a.deltas[:i] {
		value += uint64(delta)
	}
	return value
}

func (a *deltaOffsetArray[T]) Len() int { return len(a.deltas) + 1 }
