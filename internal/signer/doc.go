// Package signer implements AWS Signature Version 4 request signing for
// S3-compatible object stores without an SDK.
//
// Signing is a pure function of the credentials, the request description and
// the payload digest: no I/O happens here, so every intermediate value
// (canonical request, string to sign, signing key) is exposed for tests.
package signer
