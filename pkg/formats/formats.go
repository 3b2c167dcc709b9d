// Package formats provides parsers for triangle mesh file formats.
//
// STL is the only format supported. Both the binary and the ASCII variant
// are read; WriteBinarySTL emits the binary one.
package formats
