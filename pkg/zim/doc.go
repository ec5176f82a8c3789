/*
Package zim implements a read-only reader for the ZIM archive format
(openzim.org): a memory-mapped binary container holding a
URL/title-sorted directory of entries pointing into compressed content
clusters.

Open mmaps the file read-only and parses its fixed 80-byte header; all
subsequent lookups are offset arithmetic over the mapping, so opening
an 80 GB archive costs only the size of its directory working set, not
the whole file.

Redirect chains are resolved transitively but bounded at a small
constant, a deliberate hardening over archives that in principle permit
an unbounded (or cyclic) chain. Cluster decompression supports
pass-through, zstd, and LZMA bodies; an unrecognized compression code is
a decompression error, not a panic.
*/
package zim
