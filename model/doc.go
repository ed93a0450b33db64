// Package model defines stable boundary types for API layers.
//
// Proof identity (the deliverable content hash and ledger records) is
// unaffected by any projection. These structs are the only types intended
// for direct JSON serialization by consumers.
package model
