// Package storage uploads release artifacts to an S3-compatible object store
// with SigV4-signed PUT requests and reports where they are publicly served.
package storage
