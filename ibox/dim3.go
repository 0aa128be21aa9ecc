// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build dim3
// +build dim3

package ibox

// SpaceDim is the number of spatial dimensions.
const SpaceDim = 3
