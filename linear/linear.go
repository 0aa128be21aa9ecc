// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package linear implements the byte-level linearization protocol used
// to move values between processes. A type participates if it (or a
// pointer to it) implements Linearizer and Unlinearizer, or if it is a
// fixed-size value without indirection (booleans, numbers, and arrays
// and structs of them), in which case its little-endian image is
// copied verbatim. Platform-sized integers (int, uint, uintptr) are
// widened to 64 bits.
//
// Sequences are encoded as
//
//	[count][offset_0 ... offset_{count-1}][payload_0 ... payload_{count-1}]
//
// where count and the offsets are little-endian int32s and each offset
// is the byte position of its payload from the start of the sequence.
// Any element may therefore be decoded without scanning its
// predecessors.
package linear

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/boxlayout/internal/fault"
)

// A Linearizer can report its encoded size and write itself into a
// buffer of exactly that size.
type Linearizer interface {
	// LinearSize returns the number of bytes LinearOut writes.
	LinearSize() int
	// LinearOut writes the value into p, which has at least
	// LinearSize bytes.
	LinearOut(p []byte)
}

// An Unlinearizer restores itself from a buffer written by the
// corresponding Linearizer.
type Unlinearizer interface {
	LinearIn(p []byte) error
}

// intSize is the size of the count and offset fields of a sequence.
const intSize = 4

func linearizer(v interface{}) (Linearizer, bool) {
	l, ok := v.(Linearizer)
	return l, ok
}

// Size returns the number of bytes needed to linearize v.
func Size[T any](v T) int {
	if l, ok := linearizer(v); ok {
		return l.LinearSize()
	}
	if l, ok := linearizer(&v); ok {
		return l.LinearSize()
	}
	t := reflect.TypeOf(&v).Elem()
	n := typeSize(t)
	if n < 0 {
		fault.Argumentf("linear: type %s is not linearizable", t)
	}
	return n
}

// Out writes v into p, which must have at least Size(v) bytes.
func Out[T any](p []byte, v T) {
	if l, ok := linearizer(v); ok {
		l.LinearOut(p)
		return
	}
	if l, ok := linearizer(&v); ok {
		l.LinearOut(p)
		return
	}
	rv := reflect.ValueOf(&v).Elem()
	n := typeSize(rv.Type())
	if n < 0 {
		fault.Argumentf("linear: type %s is not linearizable", rv.Type())
	}
	putFixed(p[:n], rv)
}

// In restores v from p.
func In[T any](p []byte, v *T) error {
	if u, ok := interface{}(v).(Unlinearizer); ok {
		return u.LinearIn(p)
	}
	if _, ok := interface{}(*v).(Unlinearizer); ok {
		// T is itself a pointer type; allocate its target if needed.
		rv := reflect.ValueOf(v).Elem()
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return interface{}(*v).(Unlinearizer).LinearIn(p)
	}
	rv := reflect.ValueOf(v).Elem()
	n := typeSize(rv.Type())
	if n < 0 {
		fault.Argumentf("linear: type %s is not linearizable", rv.Type())
	}
	if len(p) < n {
		return errors.E(errors.Integrity, fmt.Sprintf("linear: short buffer: need %d bytes, have %d", n, len(p)))
	}
	getFixed(p[:n], rv)
	return nil
}

// Marshal returns the linearized image of v.
func Marshal[T any](v T) []byte {
	p := make([]byte, Size(v))
	Out(p, v)
	return p
}

// Unmarshal restores v from p.
func Unmarshal[T any](p []byte, v *T) error {
	return In(p, v)
}

// SliceSize returns the number of bytes needed to linearize the
// sequence vs.
func SliceSize[T any](vs []T) int {
	n := (len(vs) + 1) * intSize
	for i := range vs {
		n += Size(vs[i])
	}
	return n
}

// SliceOut writes the sequence vs into p, which must have at least
// SliceSize(vs) bytes.
func SliceOut[T any](p []byte, vs []T) {
	checkInt(len(vs))
	binary.LittleEndian.PutUint32(p, uint32(len(vs)))
	off := (len(vs) + 1) * intSize
	for i := range vs {
		checkInt(off)
		binary.LittleEndian.PutUint32(p[(i+1)*intSize:], uint32(off))
		n := Size(vs[i])
		Out(p[off:off+n], vs[i])
		off += n
	}
}

// SliceIn decodes a sequence written by SliceOut.
func SliceIn[T any](p []byte) ([]T, error) {
	n, err := SliceLen(p)
	if err != nil {
		return nil, err
	}
	vs := make([]T, n)
	for i := range vs {
		if err := SliceAt(p, i, &vs[i]); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// SliceLen returns the number of elements in the encoded sequence p.
func SliceLen(p []byte) (int, error) {
	if len(p) < intSize {
		return 0, errors.E(errors.Integrity, "linear: short sequence header")
	}
	n := int(int32(binary.LittleEndian.Uint32(p)))
	if n < 0 || (n+1)*intSize > len(p) {
		return 0, errors.E(errors.Integrity, fmt.Sprintf("linear: corrupt sequence count %d", n))
	}
	return n, nil
}

// SliceAt decodes element i of the encoded sequence p into v without
// decoding the other elements.
func SliceAt[T any](p []byte, i int, v *T) error {
	n, err := SliceLen(p)
	if err != nil {
		return err
	}
	if i < 0 || i >= n {
		fault.Argumentf("linear: index %d out of range [0, %d)", i, n)
	}
	off := int(binary.LittleEndian.Uint32(p[(i+1)*intSize:]))
	end := len(p)
	if i+1 < n {
		end = int(binary.LittleEndian.Uint32(p[(i+2)*intSize:]))
	}
	if off > end || end > len(p) {
		return errors.E(errors.Integrity, fmt.Sprintf("linear: corrupt offset for element %d", i))
	}
	return In(p[off:end], v)
}

// MarshalSlice returns the linearized image of the sequence vs.
func MarshalSlice[T any](vs []T) []byte {
	p := make([]byte, SliceSize(vs))
	SliceOut(p, vs)
	return p
}

func checkInt(n int) {
	if n > math.MaxInt32 {
		fault.Allocationf("linear: buffer offset %d exceeds the int32 range", n)
	}
}
