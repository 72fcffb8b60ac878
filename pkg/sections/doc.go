// Package sections implements ordered sections within projects.
//
// Sections under one project carry contiguous integer positions starting at
// zero. The ordering invariant is protected two ways: the Patch type has no
// position field, and Update writes back the position it read under FOR
// UPDATE in its own transaction, so no partial update can revert a
// concurrent reorder. Move is the single operation that changes order, and
// it rewrites the whole sibling set while holding row locks on all of them.
package sections
