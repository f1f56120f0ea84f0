// Package catalog loads schema catalogs written in CUE into the engine.
//
// A catalog declares schemas, their variants, prop trees, frame sockets, and
// provider-backed sockets. The Parser unifies one or more CUE files or
// directories into a single value and extracts typed definitions; the Loader
// materializes them through the engine in a single unit of work, so a broken
// catalog never half-applies.
//
// Reloading a changed catalog creates new variants rather than mutating the
// ones components were built from. Existing components keep resolving against
// their original variant.
package catalog
