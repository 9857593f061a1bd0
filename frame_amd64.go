//go:build amd64

package vmkit

// On amd64, with frame pointers enabled (the Go toolchain keeps RBP chained
// by default since 1.7), a frame is a two-word block: the saved RBP at
// offset 0, the return address at offset 1. See frame_arm64.go for the
// arm64 layout and stackwalk.go for the abstraction these feed.
const frameWordSize = 8
