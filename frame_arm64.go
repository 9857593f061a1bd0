//go:build arm64

package vmkit

// On arm64, the frame-pointer chain is a two-word block: the saved FP (X29)
// at offset 0, the saved LR (X30, the return address) at offset 1 - the
// same shape as amd64's, just reached via different registers, so
// frameWordSize is the only thing that would ever need to vary per arch
// (see frame_amd64.go, stackwalk.go).
const frameWordSize = 8
