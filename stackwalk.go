//go:build amd64 || arm64

package vmkit

import "unsafe"

// currentFP returns the calling goroutine's current frame pointer, read via
// the per-arch assembly stub (frame_amd64.s / frame_arm64.s). Implementations
// targeting ABIs without a reliable frame-pointer chain must supply their
// own walker behind the Frame abstraction below instead of using this.
func currentFP() uintptr

// Frame is one entry in a frame-pointer chain (spec.md §4.5, §6): a
// two-word block with the caller's frame pointer at offset 0 and the return
// address - FRAME_IP - at offset 1. currentFP and the frame's own layout
// (frame_amd64.go / frame_arm64.go, where frameWordSize is the size in bytes
// of one frame word) are the only architecture-specific knowledge the walker
// needs.
type Frame struct {
	fp uintptr
}

// CurrentFrame starts a walk at the caller of CurrentFrame itself.
func CurrentFrame() Frame { return Frame{fp: currentFP()} }

// FrameFromPointer starts a walk at an externally obtained frame pointer,
// e.g. a lastSP recorded for a thread parked in uncooperative native code
// (spec.md §4.1's ParkedSP).
func FrameFromPointer(fp uintptr) Frame { return Frame{fp: fp} }

// Valid reports whether f refers to an actual frame, as opposed to the
// chain's terminating zero frame pointer.
func (f Frame) Valid() bool { return f.fp != 0 }

// IP returns the return address stored in this frame - FRAME_IP(frame) in
// spec.md §6's notation.
func (f Frame) IP() uintptr {
	if f.fp == 0 {
		return 0
	}
	return *(*uintptr)(unsafe.Pointer(f.fp + frameWordSize))
}

// Next returns the caller's frame: frame[0] in spec.md §6's notation. Once
// the chain reaches the bottom of the stack, the saved frame pointer is 0
// and the returned Frame is !Valid().
func (f Frame) Next() Frame {
	if f.fp == 0 {
		return Frame{}
	}
	return Frame{fp: *(*uintptr)(unsafe.Pointer(f.fp))}
}

// WalkFrames calls visit once per frame in the chain starting at start,
// stopping as soon as visit returns false or the chain bottoms out.
func WalkFrames(start Frame, visit func(Frame) bool) {
	for f := start; f.Valid(); f = f.Next() {
		if !visit(f) {
			return
		}
	}
}

// CallerMethodInfo walks up depth frames from start (0 meaning start's own
// return address) and resolves the enclosing method via m, skipping no
// frames itself - callers that need to skip non-managed frames (spec.md's
// S5 scenario) should walk with WalkFrames directly and filter as they go.
// Returns false once the chain bottoms out before depth is reached, which
// is how getCallerClass(depth) reports "no such frame" for a depth past
// the bottom of the managed stack (spec.md §4.5).
func CallerMethodInfo(m *FunctionMap, start Frame, depth int) (MethodInfo, bool) {
	f := start
	for i := 0; i < depth; i++ {
		if !f.Valid() {
			return MethodInfo{}, false
		}
		f = f.Next()
	}
	if !f.Valid() {
		return MethodInfo{}, false
	}
	return m.IPToMethodInfo(f.IP())
}
