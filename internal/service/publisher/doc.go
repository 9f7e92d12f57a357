// Package publisher uploads the build outputs of a desktop release and
// registers them with the release feed.
//
// Updater manifests are uploaded first and best effort. Installable
// artifacts are then processed one at a time in file name order: at most one
// artifact per platform is uploaded under {version}/{file} and registered.
// The first artifact failure stops the run; nothing is rolled back.
package publisher
