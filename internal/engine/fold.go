package engine

import "math/bits"

// Fold constants. Zero is reserved for "no code", so a zero accumulator is
// perturbed to foldSentinel.
const (
	foldSeed     uint32 = 0x811c9dc5
	foldSentinel uint32 = 0x9e3779b9
	foldRotate          = 5
)

// Markers folded in place of values that are absent.
const (
	markVoid      uint32 = 0x766f6964 // "void"
	markDynamic   uint32 = 0x64796e21
	markUnbounded uint32 = 0x756e6221
	markSignature uint32 = 0x28292121 // "()", separates void() from void
	markVariadic  uint32 = 0x2e2e2e21
	markLower     uint32 = 0x6c6f7721
	markUpper     uint32 = 0x75707021
	markCount     uint32 = 0x636e7421
	markEnd       uint32 = 0x656e6421
)

// folder is the rolling combinator used for summary codes and SCC digests:
// rotate the accumulator and XOR in one 32-bit word at a time.
type folder struct {
	acc uint32
}

func newFolder() *folder {
	return &folder{acc: foldSeed}
}

func (f *folder) word(w uint32) {
	f.acc = bits.RotateLeft32(f.acc, foldRotate) ^ w
	if f.acc == 0 {
		f.acc = foldSentinel
	}
}

// int folds both halves of v, low half first.
func (f *folder) int(v int64) {
	u := uint64(v)
	f.word(uint32(u))
	f.word(uint32(u >> 32))
}

// str folds one word per rune followed by a terminator, so "ab"+"c" and
// "a"+"bc" fold differently.
func (f *folder) str(s string) {
	for _, r := range s {
		f.word(uint32(r))
	}
	f.word(markEnd)
}

func (f *folder) flag(b bool) {
	if b {
		f.word(1)
	} else {
		f.word(2)
	}
}

// opt folds an optional literal, distinguishing absent from any value.
func (f *folder) opt(mark uint32, v *int64) {
	if v == nil {
		return
	}
	f.word(mark)
	f.int(*v)
}

func (f *folder) sum() uint32 {
	return f.acc
}
