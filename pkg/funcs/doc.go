// Package funcs provides the function registry backing attribute
// computation. It ships the built-in identity, unset and set-value functions
// the engine depends on, and supports user-defined transformation functions
// written in Starlark.
package funcs
