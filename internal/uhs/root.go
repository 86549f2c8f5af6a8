package uhs

import "slices"

// RootNode is the top of a parsed tree. It owns the link registry that maps
// node IDs to nodes elsewhere in the same tree.
type RootNode struct {
	Node
	links  map[int]*Node
	legacy bool
}

// NewRootNode returns an empty root.
func NewRootNode() *RootNode {
	r := &RootNode{Node: *NewNode("Root"), links: make(map[int]*Node)}
	r.variant = VariantRoot
	return r
}

// Legacy reports whether the tree is the 88a compatibility stub of a 9x
// file rather than its real content.
func (r *RootNode) Legacy() bool { return r.legacy }

// SetLegacy marks the tree as a compatibility stub.
func (r *RootNode) SetLegacy(legacy bool) { r.legacy = legacy }

// Register gives n the ID id and records it in the registry, dropping any
// previous registration of n. A non-positive id only deregisters. If another
// node held id, it loses it.
func (r *RootNode) Register(n *Node, id int) {
	r.Unregister(n)
	if id <= 0 {
		return
	}
	if prev, ok := r.links[id]; ok && prev != n {
		prev.id = -1
	}
	r.links[id] = n
	n.id = id
}

// Unregister removes n from the registry and clears its ID.
func (r *RootNode) Unregister(n *Node) {
	if n.id > 0 && r.links[n.id] == n {
		delete(r.links, n.id)
	}
	n.id = -1
}

// NodeByLinkID returns the registered node, unwrapped, or nil.
func (r *RootNode) NodeByLinkID(id int) *Node {
	return r.links[id]
}

// Link resolves id for navigation. Groups are returned as they are; any
// other node is wrapped in a title-less group so viewers show it as a list
// item instead of a section title.
func (r *RootNode) Link(id int) *Node {
	n, ok := r.links[id]
	if !ok {
		return nil
	}
	if n.IsGroup() {
		return n
	}
	wrapper := NewNode(n.typ)
	wrapper.children = []*Node{n}
	wrapper.revealed = 1
	return wrapper
}

// LinkIDs returns the registered IDs in ascending order.
func (r *RootNode) LinkIDs() []int {
	ids := make([]int, 0, len(r.links))
	for id := range r.links {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
