// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the tensor types a DRBM computes with, so callers can
// build sample batches for drbm.Model.Posterior and plug in their own backend.
//
// # Basic Usage
//
//	model, err := drbm.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	samples, err := tensor.FromSlice(pixels, tensor.Shape{batch, cfg.Visible}, model.Backend())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	posterior, err := model.Posterior(samples)
//
// # Supported Data Types
//
// Tensors hold float32, float64 or int32 elements. Model parameters and
// samples are float32; labels and predictions are int32.
//
// # Broadcasting
//
// Binary operations follow NumPy broadcasting rules:
//
//	a := tensor.Zeros[float32](tensor.Shape{3, 1}, backend)  // (3, 1)
//	b := tensor.Full[float32](tensor.Shape{3, 4}, 1, backend) // (3, 4)
//	c := a.Add(b)                                             // (3, 4)
package tensor
