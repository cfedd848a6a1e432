// Package ir provides the node model for type graphs extracted from debug
// information.
//
// This package contains the type descriptions and the Graph arena only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the node model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Nodes are addressed by NodeID; edges are ID pairs, never pointers
//   - NoNode (0) is "void": an absent pointee or return type
//   - Derived analysis state (SCCs, summary codes, classes) never lives here;
//     it is kept in side tables owned by the engine
//   - Node bodies form a sealed set, so every consumer switches exhaustively
package ir
