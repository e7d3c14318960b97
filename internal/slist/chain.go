package slist

// Link chains refs in order, terminating the last one, and returns the
// values PushBatch expects. An empty refs yields Null, Null, 0.
func Link(links Links, refs ...Ref) (first, last Ref, count int) {
	if len(refs) == 0 {
		return Null, Null, 0
	}
	for i := 0; i < len(refs)-1; i++ {
		links.SetNext(refs[i], refs[i+1])
	}
	last = refs[len(refs)-1]
	links.SetNext(last, Null)
	return refs[0], last, len(refs)
}

// Walk visits a detached chain from head until Null or until fn returns
// false. The next link is read before fn runs, so fn may recycle the entry
// it is given.
func Walk(links Links, head Ref, fn func(Ref) bool) {
	for ref := head; ref != Null; {
		next := links.Next(ref)
		if !fn(ref) {
			return
		}
		ref = next
	}
}

// Collect returns the refs of a detached chain in order.
func Collect(links Links, head Ref) []Ref {
	var refs []Ref
	Walk(links, head, func(ref Ref) bool {
		refs = append(refs, ref)
		return true
	})
	return refs
}
