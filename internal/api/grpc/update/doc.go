// Package update implements the gRPC bridge between the desktop UI and the
// update controller.
//
// The service is described by hand with protobuf well-known types so no code
// generation step is needed: statuses travel as google.protobuf.Struct values
// with the keys status, version, percent and message.
package update
