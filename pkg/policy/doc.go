// Package policy evaluates Open Policy Agent (OPA) Rego policies against
// graph operations before they are applied.
//
// The engine ships with built-in policies covering connection self-loops,
// component naming conventions, and aggregation frame nesting, and can load
// additional policies from .rego or .json files. Policies with error or
// critical severity block the operation they deny; warnings are surfaced but
// do not block.
//
// The Loader supports watching policy directories with fsnotify so edits to
// policy files take effect without a restart.
package policy
