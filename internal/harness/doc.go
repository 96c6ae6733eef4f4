// Package harness runs conformance scenarios against the dispatch engine.
//
// A scenario loads class, instance and generic definitions, drives one
// engine through a list of steps, and asserts on the journal the engine
// wrote. Every run uses a fresh engine, a fresh in-memory store and
// sequential call tokens, so traces are reproducible and can be compared
// with golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: describe_chain
//	description: "call-next-method walks from CIRCLE to SHAPE to the default"
//	definitions:
//	  - ../definitions/shapes.cue
//	source: |
//	  instance: c2: class: "CIRCLE"
//	token_prefix: shapes
//	steps:
//	  - eval: "(describe [c1])"
//	    expect:
//	      result: '"circle>shape>thing"'
//	  - eval: "(describe)"
//	    expect:
//	      error: NO_APPLICABLE_METHOD
//	  - define:
//	      generic: describe
//	      params: [{name: b, types: [BOX]}]
//	      body: '"box"'
//	  - undefine: {generic: describe, method: "4"}
//	assertions:
//	  - type: trace_order
//	    frames: ["describe#3", "describe#2", "describe#1"]
//	  - type: methods
//	    generic: describe
//	    ids: [3, 2, 1]
//	  - type: replay
//
// # Assertion Types
//
//   - trace_contains: some frame matches generic and the optional kind, method and outcome
//   - trace_order: frames "generic#method" appear in order, not necessarily adjacent
//   - trace_count: generic (optionally of one kind) appears exactly N times
//   - methods: the generic lists its methods in the given precedence order
//   - replay: re-executing each recorded call selects the recorded methods
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/describe_chain.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
