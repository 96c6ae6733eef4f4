// Package classes is the class-hierarchy collaborator of the generic
// function runtime.
//
// It holds the system primitive classes, user-defined classes with their
// superclass DAG, and named object instances. The engine consumes only a
// narrow surface: Lookup, IsSubclassOf, ClassOf and the Retain/Release
// reference-count hooks that keep a class alive while a method
// restriction points at it.
package classes
