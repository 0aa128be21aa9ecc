// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package linear

import (
	"encoding/binary"
	"math"
	"reflect"
	"sync"
	"unsafe"
)

// sizes caches typeSize by reflect.Type.
var sizes sync.Map

// typeSize returns the encoded size of values of type t, or -1 if t
// is not a fixed-size type without indirection.
func typeSize(t reflect.Type) int {
	if n, ok := sizes.Load(t); ok {
		return n.(int)
	}
	n := computeSize(t)
	sizes.Store(t, n)
	return n
}

func computeSize(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int, reflect.Uint, reflect.Uintptr,
		reflect.Int64, reflect.Uint64, reflect.Float64, reflect.Complex64:
		return 8
	case reflect.Complex128:
		return 16
	case reflect.Array:
		n := computeSize(t.Elem())
		if n < 0 {
			return -1
		}
		return n * t.Len()
	case reflect.Struct:
		var size int
		for i := 0; i < t.NumField(); i++ {
			n := computeSize(t.Field(i).Type)
			if n < 0 {
				return -1
			}
			size += n
		}
		return size
	}
	return -1
}

// putFixed writes the little-endian image of v into p and returns the
// number of bytes written.
func putFixed(p []byte, v reflect.Value) int {
	le := binary.LittleEndian
	switch v.Kind() {
	case reflect.Bool:
		p[0] = 0
		if v.Bool() {
			p[0] = 1
		}
		return 1
	case reflect.Int8:
		p[0] = byte(v.Int())
		return 1
	case reflect.Uint8:
		p[0] = byte(v.Uint())
		return 1
	case reflect.Int16:
		le.PutUint16(p, uint16(v.Int()))
		return 2
	case reflect.Uint16:
		le.PutUint16(p, uint16(v.Uint()))
		return 2
	case reflect.Int32:
		le.PutUint32(p, uint32(v.Int()))
		return 4
	case reflect.Uint32:
		le.PutUint32(p, uint32(v.Uint()))
		return 4
	case reflect.Float32:
		le.PutUint32(p, math.Float32bits(float32(v.Float())))
		return 4
	case reflect.Int, reflect.Int64:
		le.PutUint64(p, uint64(v.Int()))
		return 8
	case reflect.Uint, reflect.Uintptr, reflect.Uint64:
		le.PutUint64(p, v.Uint())
		return 8
	case reflect.Float64:
		le.PutUint64(p, math.Float64bits(v.Float()))
		return 8
	case reflect.Complex64:
		c := v.Complex()
		le.PutUint32(p, math.Float32bits(float32(real(c))))
		le.PutUint32(p[4:], math.Float32bits(float32(imag(c))))
		return 8
	case reflect.Complex128:
		c := v.Complex()
		le.PutUint64(p, math.Float64bits(real(c)))
		le.PutUint64(p[8:], math.Float64bits(imag(c)))
		return 16
	case reflect.Array:
		var off int
		for i := 0; i < v.Len(); i++ {
			off += putFixed(p[off:], v.Index(i))
		}
		return off
	case reflect.Struct:
		var off int
		for i := 0; i < v.NumField(); i++ {
			off += putFixed(p[off:], v.Field(i))
		}
		return off
	}
	panic("linear: putFixed of " + v.Type().String())
}

// getFixed restores the addressable value v from p and returns the
// number of bytes consumed. Unexported struct fields are restored too.
func getFixed(p []byte, v reflect.Value) int {
	if !v.CanSet() {
		v = reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
	}
	le := binary.LittleEndian
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(p[0] != 0)
		return 1
	case reflect.Int8:
		v.SetInt(int64(int8(p[0])))
		return 1
	case reflect.Uint8:
		v.SetUint(uint64(p[0]))
		return 1
	case reflect.Int16:
		v.SetInt(int64(int16(le.Uint16(p))))
		return 2
	case reflect.Uint16:
		v.SetUint(uint64(le.Uint16(p)))
		return 2
	case reflect.Int32:
		v.SetInt(int64(int32(le.Uint32(p))))
		return 4
	case reflect.Uint32:
		v.SetUint(uint64(le.Uint32(p)))
		return 4
	case reflect.Float32:
		v.SetFloat(float64(math.Float32frombits(le.Uint32(p))))
		return 4
	case reflect.Int, reflect.Int64:
		v.SetInt(int64(le.Uint64(p)))
		return 8
	case reflect.Uint, reflect.Uintptr, reflect.Uint64:
		v.SetUint(le.Uint64(p))
		return 8
	case reflect.Float64:
		v.SetFloat(math.Float64frombits(le.Uint64(p)))
		return 8
	case reflect.Complex64:
		re := math.Float32frombits(le.Uint32(p))
		im := math.Float32frombits(le.Uint32(p[4:]))
		v.SetComplex(complex(float64(re), float64(im)))
		return 8
	case reflect.Complex128:
		v.SetComplex(complex(math.Float64frombits(le.Uint64(p)), math.Float64frombits(le.Uint64(p[8:]))))
		return 16
	case reflect.Array:
		var off int
		for i := 0; i < v.Len(); i++ {
			off += getFixed(p[off:], v.Index(i))
		}
		return off
	case reflect.Struct:
		var off int
		for i := 0; i < v.NumField(); i++ {
			off += getFixed(p[off:], v.Field(i))
		}
		return off
	}
	panic("linear: getFixed of " + v.Type().String())
}
