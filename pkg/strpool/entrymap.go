package strpool

import "github.com/shuokabe/wfsttrain/pkg/cmap"

// entryMap is the cmap instantiation backing a Pool, pulled into its
// own tiny type so Pool's exported surface does not leak the generic
// instantiation.
type entryMap struct {
	m *cmap.Map[string]
}

func newEntryMap() *entryMap {
	return &entryMap{m: cmap.New[string]()}
}

func (e *entryMap) insertOrKeep(hash uint64, value string) {
	e.m.Insert(hash, value)
}

func (e *entryMap) find(hash uint64) (string, bool) {
	return e.m.Find(hash)
}
