package core

// descriptor is the location of one live Set record: which segment it
// lives in, the byte offset of its frame, and the frame's length.
type descriptor struct {
	segID  int
	offset int64
	length int64
}

// index is the in-memory key → descriptor mapping. It carries no ordering
// requirement and no on-disk representation of its own: it exists purely
// to be rebuilt by recovery on every Open.
type index struct {
	m map[string]descriptor
}

func newIndex() *index {
	return &index{m: make(map[string]descriptor)}
}

// insert records key's newest location, returning the descriptor it
// replaced, if any.
func (idx *index) insert(key string, d descriptor) (prev descriptor, hadPrev bool) {
	prev, hadPrev = idx.m[key]
	idx.m[key] = d
	return prev, hadPrev
}

func (idx *index) get(key string) (descriptor, bool) {
	d, ok := idx.m[key]
	return d, ok
}

// remove deletes key from the index, returning the descriptor it held, if
// any.
func (idx *index) remove(key string) (prev descriptor, hadPrev bool) {
	prev, hadPrev = idx.m[key]
	delete(idx.m, key)
	return prev, hadPrev
}

func (idx *index) len() int {
	return len(idx.m)
}

// entries calls fn for every key/descriptor pair. Iteration order is
// unspecified, matching §4.5's note that compaction's correctness does not
// depend on it.
func (idx *index) entries(fn func(key string, d descriptor)) {
	for k, d := range idx.m {
		fn(k, d)
	}
}

// replaceAll swaps the whole underlying map in one step, used by
// compaction to install every key's new post-compaction location at once.
func (idx *index) replaceAll(m map[string]descriptor) {
	idx.m = m
}
