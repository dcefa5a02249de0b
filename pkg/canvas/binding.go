package canvas

// Binding repair runs over every externally supplied element batch before it
// is accepted. Relational references must only ever point at elements that
// exist in the same candidate set, otherwise the rendering client crashes on
// a dangling id; repair drops those references instead of rejecting the batch.

// Binding kinds the rendering client understands.
var allowedBindingKinds = map[string]struct{}{
	"arrow": {},
	"text":  {},
}

// RepairBindings strips boundElements entries whose referenced id is absent
// from the set or whose relation kind is not allowed, and nulls out any
// containerId that does not resolve within the set. Elements are modified in
// place.
func RepairBindings(elements []Element) {
	RepairBindingsAgainst(elements, nil)
}

// RepairBindingsAgainst is RepairBindings with extra ids counted as present,
// used when a batch is installed into a session that already holds elements.
func RepairBindingsAgainst(elements []Element, extra map[string]struct{}) {
	present := make(map[string]struct{}, len(elements)+len(extra))
	for id := range extra {
		present[id] = struct{}{}
	}
	for i := range elements {
		present[elements[i].ID] = struct{}{}
	}

	for i := range elements {
		el := &elements[i]

		if len(el.BoundElements) > 0 {
			kept := el.BoundElements[:0]
			for _, b := range el.BoundElements {
				if _, ok := present[b.ID]; !ok {
					continue
				}
				if _, ok := allowedBindingKinds[b.Type]; !ok {
					continue
				}
				kept = append(kept, b)
			}
			if len(kept) == 0 {
				el.BoundElements = nil
			} else {
				el.BoundElements = kept
			}
		}

		if el.ContainerID != nil {
			if _, ok := present[*el.ContainerID]; !ok {
				el.ContainerID = nil
			}
		}
	}
}
