package wfst

// BuildAdjacency fills every state's In/Out arc-index lists in a
// single pair of backing allocations (DESIGN NOTES 9 asks for flat
// owned buffers rather than one allocation per state).
func BuildAdjacency(f *Lattice) error {
	outDeg := make([]int, len(f.States))
	inDeg := make([]int, len(f.States))
	for _, a := range f.Arcs {
		outDeg[a.Src]++
		inDeg[a.Dst]++
	}

	outFlat := make([]int, len(f.Arcs))
	inFlat := make([]int, len(f.Arcs))
	outOff := make([]int, len(f.States)+1)
	inOff := make([]int, len(f.States)+1)
	for i := 0; i < len(f.States); i++ {
		outOff[i+1] = outOff[i] + outDeg[i]
		inOff[i+1] = inOff[i] + inDeg[i]
	}
	outCursor := append([]int(nil), outOff[:len(f.States)]...)
	inCursor := append([]int(nil), inOff[:len(f.States)]...)

	for i, a := range f.Arcs {
		outFlat[outCursor[a.Src]] = i
		outCursor[a.Src]++
		inFlat[inCursor[a.Dst]] = i
		inCursor[a.Dst]++
	}

	for i := range f.States {
		f.States[i].Out = outFlat[outOff[i]:outOff[i+1]:outOff[i+1]]
		f.States[i].In = inFlat[inOff[i]:inOff[i+1]:inOff[i+1]]
	}
	return nil
}

// TopoSort computes forward and backward topological arc orderings,
// checking along the way that the lattice has exactly one source
// (no in-arcs), exactly one sink (no out-arcs), and is acyclic
// (spec.md 4.5). State order is derived with Kahn's algorithm over
// the state graph; arcs are then grouped by the rank of the state
// they are attached to, which gives each arc's dependencies (the
// in-arcs of its source for the forward order, the out-arcs of its
// target for the backward order) strictly earlier positions.
func TopoSort(f *Lattice) error {
	n := len(f.States)
	indeg := make([]int, n)
	sources, sinks := 0, 0
	for i := range f.States {
		indeg[i] = len(f.States[i].In)
		if len(f.States[i].In) == 0 {
			sources++
		}
		if len(f.States[i].Out) == 0 {
			sinks++
		}
	}
	if sources != 1 {
		return &InvalidError{Msg: "lattice does not have a unique source state"}
	}
	if sinks != 1 {
		return &InvalidError{Msg: "lattice does not have a unique sink state"}
	}

	queue := make([]int, 0, n)
	for i := range f.States {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	stateOrder := make([]int, 0, n)
	remaining := append([]int(nil), indeg...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		stateOrder = append(stateOrder, s)
		for _, ai := range f.States[s].Out {
			dst := f.Arcs[ai].Dst
			remaining[dst]--
			if remaining[dst] == 0 {
				queue = append(queue, dst)
			}
		}
	}
	if len(stateOrder) != n {
		return &InvalidError{Msg: "lattice has a cycle"}
	}

	f.ForwardOrder = make([]int, 0, len(f.Arcs))
	for _, s := range stateOrder {
		f.ForwardOrder = append(f.ForwardOrder, f.States[s].Out...)
	}
	f.BackwardOrder = make([]int, 0, len(f.Arcs))
	for i := len(stateOrder) - 1; i >= 0; i-- {
		f.BackwardOrder = append(f.BackwardOrder, f.States[stateOrder[i]].Out...)
	}
	return nil
}
