// Package jit drives compilation: it owns configuration, the method filter,
// the translation lookup cache and the per-worker arenas, and runs the
// trace retry loop between the CFG builders and the backend.
package jit
