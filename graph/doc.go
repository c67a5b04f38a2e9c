// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph builds and trains layer graphs of convolutional networks.
//
// # Overview
//
// A network is declared as an ordered list of layer records (data, fc, conv,
// pool, softmax, cost.logreg). Each record names its inputs by index into the
// list, so declaration order is a valid evaluation order. The graph runs
// dependency-driven forward and backward passes: a layer computes once all of
// its inputs have arrived, and gradients from several consumers accumulate
// into one buffer.
//
// # Basic Usage
//
//	decls, err := graph.LoadDefinitionFile("net.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	g, err := graph.New(decls, graph.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	batch := graph.NewDataset(numCases, images, labels)
//	for step := 0; step < 100; step++ {
//	    res, err := g.TrainStep(batch)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res)
//	}
//
// # Gradient Checking
//
// CheckGradients compares every weight matrix's analytic gradient with a
// forward-difference estimate and reports relative errors; checks at or above
// GradCheckThreshold fail.
//
//	report, err := g.CheckGradients(batch)
//	if err == nil && !report.OK() {
//	    fmt.Printf("%d gradient checks failed\n", report.Failed)
//	}
//
// # Checkpoints
//
// SaveCheckpoint and LoadCheckpoint store weights in the SafeTensors layout.
package graph
