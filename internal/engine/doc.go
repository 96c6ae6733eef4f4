// Package engine implements multiple-dispatch generic functions.
//
// A generic function is a named operation with many methods. Each method
// restricts its parameters by class and optional guard queries; methods
// are kept sorted from most to least specific, and a call runs the first
// applicable one. Method bodies can resume the chain with CallNextMethod,
// rebind arguments with OverrideNextMethod, or jump to a method by index
// with CallSpecificMethod.
//
// ARCHITECTURE:
//
// Definition time:
//  1. Parameter types are resolved against the class hierarchy and
//     retained there (NewRestriction)
//  2. CompareRestrictions walks the existing methods; the first one the
//     new method outranks fixes the slot, an identical one is replaced in
//     place keeping its index
//
// Call time:
//  1. Arguments are bound once into a frame carried by context.Context
//  2. Methods are tested in stored order: arity, type tags, then guards
//  3. The first applicable method runs with the frame in its ctx
//  4. Busy counts on the generic and method are released by defer
//
// CRITICAL PATTERNS:
//
// Reentrancy: a generic or method with a non-zero busy count is never
// mutated; removals fail with REENTRANCY_VIOLATION instead of waiting.
//
// Determinism: selection order depends only on definition order and the
// class hierarchy. No randomness, no concurrency. Every frame is stamped
// from a logical Clock for the journal.
//
// Halt: Halt() or ctx cancellation unwinds every active frame with
// HALT_REQUESTED. Side effects of bodies that already ran are kept.
package engine
