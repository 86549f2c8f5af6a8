// Package uhs models a parsed hint file as a tree of nodes with progressive
// reveal state, link resolution and binary payloads.
package uhs

import "errors"

var (
	// ErrLinkHasChildren is returned when children are added to a link node.
	ErrLinkHasChildren = errors.New("uhs: link nodes cannot have children")

	// ErrHotSpotLink is returned when a hotspot node is given a link target.
	ErrHotSpotLink = errors.New("uhs: hotspot nodes cannot be links")

	// ErrChildIndex is returned for an out-of-range child position.
	ErrChildIndex = errors.New("uhs: child index out of range")
)
