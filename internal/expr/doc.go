// Package expr reads and evaluates the s-expressions used for method
// guards and bodies.
//
// Syntax:
//
//	(> ?n 0)                          function call
//	?n ?current-argument $?rest       variables
//	42 -1.5 "text" sym [instance]     literals
//	; comment                         to end of line
//
// Function names resolve generic functions first and builtins second, so
// overloading a builtin such as + takes effect in every expression. The
// forms if, and, or, progn, call-next-method, next-methodp,
// override-next-method, call-specific-method and halt are evaluated here
// and cannot be overloaded.
//
// Evaluator implements engine.Evaluator. NewEngine wires both together.
package expr
