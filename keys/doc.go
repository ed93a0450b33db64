// Package keys handles ledger identities and signatures.
//
// It never holds or generates long-term private keys. Signing is delegated to an
// external Signer (a wallet or extension); this package only formats the data to
// sign and verifies signatures read back from the ledger.
//
// Stable:
//   - AccountID and SS58 address encoding.
//   - WrapBytes and VerifyWrapped (sr25519 with ed25519 fallback).
//
// Experimental:
//   - The Signer request/response shapes, which mirror browser wallet extensions.
package keys
