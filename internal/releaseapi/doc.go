// Package releaseapi is the client of the release feed service: it reads the
// latest published version, registers uploaded artifacts and manages
// registered versions.
package releaseapi
