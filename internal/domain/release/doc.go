// Package release contains the core domain types of the publishing pipeline.
//
// It defines Platform (the {os}-{arch} channel key), the ordered platform
// pattern table used to classify build outputs, and Artifact, the immutable
// record registered for every uploaded installable.
package release
