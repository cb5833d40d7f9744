// Package createdat collects every timestamp a media file offers about when it
// was captured.
//
// Each source (EXIF, container metadata, sidecar files, the filename, the
// parent folder name and the filesystem) has its own Extractor. An Engine holds
// one Extractor per SourceKind and produces the Observations for a file; the
// choice between them is made by package resolve.
package createdat
