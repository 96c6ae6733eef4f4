// Package ir provides the value model and definition types shared by the
// defgeneric runtime.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This ensures IR remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is sealed; the class hierarchy maps each concrete type to a
//     primitive class
//   - Canonical JSON never carries raw floats; symbols, floats and instances
//     use tagged single-key objects
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
