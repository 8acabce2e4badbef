// Package mir holds the compiler's control-flow graph for one compilation
// attempt and the two front ends that build it.
//
// A Unit owns every block and instruction node of the attempt. Blocks and
// nodes live in arena slabs and are addressed by index: BlockID is the
// position in creation order and successor edges are BlockIDs, so nothing
// in a unit points into another attempt's memory.
//
// BuildTrace turns a recorded hot path into a straight-line CFG closed by
// chaining cells and two epilogue blocks. BuildMethod splits a whole method
// at every branch target and boundary fallthrough point.
package mir
