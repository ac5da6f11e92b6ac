package sendtable

import (
	"fmt"
	"sort"

	"github.com/arloliu/rewind/errs"
)

// FlatProp is one entry of a flattened table: the descriptor plus the
// hierarchical name built while walking the table tree.
type FlatProp struct {
	Prop *SendProp
	Name string
}

// FlatSendTable is the fully expanded, prioritized property list for one
// table, in the exact order properties appear on the wire. Built once after
// all send tables are known, immutable thereafter.
type FlatSendTable struct {
	Name       string
	Properties []FlatProp
}

// excludeKey identifies one (table, prop) pair in the exclude set.
type excludeKey struct {
	table string
	prop  string
}

// Flatten produces one FlatSendTable per registered table, in registry
// order. It first binds every Array descriptor to its element type, then
// per table builds the exclude set, gathers the property hierarchy and
// sorts it by priority.
func (r *Registry) Flatten() ([]FlatSendTable, error) {
	// Bind Array element descriptors to the immediately preceding prop of
	// the same table.
	for _, tbl := range r.tables {
		var last *SendProp
		for _, p := range tbl.props {
			if p.Type == TypeArray {
				if last == nil {
					return nil, fmt.Errorf("%w: %s.%s", errs.ErrInvalidArrayProp, tbl.Name, p.Name)
				}
				p.bindArrayElem(last)
			}
			last = p
		}
	}

	flat := make([]FlatSendTable, 0, len(r.tables))
	for _, tbl := range r.tables {
		excludes := make(map[excludeKey]struct{})
		if err := r.buildExcludeSet(tbl, excludes); err != nil {
			return nil, err
		}

		var props []FlatProp
		if err := r.buildHierarchy(tbl, excludes, &props, ""); err != nil {
			return nil, err
		}

		prioritize(props)

		flat = append(flat, FlatSendTable{Name: tbl.Name, Properties: props})
	}

	return flat, nil
}

// buildExcludeSet collects every (table, prop) pair excluded anywhere in the
// table tree rooted at tbl. The recursion is bounded by the finite set of
// tables.
func (r *Registry) buildExcludeSet(tbl *SendTable, excludes map[excludeKey]struct{}) error {
	for _, p := range tbl.props {
		if p.HasFlag(FlagExclude) {
			excludes[excludeKey{p.RefTableName, p.Name}] = struct{}{}
			continue
		}

		if p.Type == TypeDataTable {
			sub, err := r.ByName(p.RefTableName)
			if err != nil {
				return err
			}
			if err := r.buildExcludeSet(sub, excludes); err != nil {
				return err
			}
		}
	}

	return nil
}

// buildHierarchy appends tbl's flattened properties to out: first the
// subtrees of non-collapsible child tables, then tbl's own leaf props.
func (r *Registry) buildHierarchy(tbl *SendTable, excludes map[excludeKey]struct{}, out *[]FlatProp, base string) error {
	var own []FlatProp
	if err := r.gatherProps(tbl, &own, excludes, out, base); err != nil {
		return err
	}

	*out = append(*out, own...)

	return nil
}

// gatherProps walks one table: leaf props (and props of collapsible child
// tables) accumulate in own, while non-collapsible child tables recurse into
// out with an extended base path.
func (r *Registry) gatherProps(tbl *SendTable, own *[]FlatProp, excludes map[excludeKey]struct{}, out *[]FlatProp, base string) error {
	for _, p := range tbl.props {
		if p.HasAnyFlag(FlagExclude | FlagInsideArray) {
			continue
		}
		if _, excluded := excludes[excludeKey{tbl.Name, p.Name}]; excluded {
			continue
		}

		if p.Type == TypeDataTable {
			sub, err := r.ByName(p.RefTableName)
			if err != nil {
				return err
			}

			if p.HasFlag(FlagCollapsible) {
				if err := r.gatherProps(sub, own, excludes, out, base); err != nil {
					return err
				}
			} else if err := r.buildHierarchy(sub, excludes, out, base+"."+p.Name); err != nil {
				return err
			}

			continue
		}

		*own = append(*own, FlatProp{Prop: p, Name: base + "." + p.Name})
	}

	return nil
}

// prioritize sorts props into on-wire order: ascending priority with one
// in-place partition pass per priority value. Properties whose priority
// matches — or that have CHANGES_OFTEN set while the current priority is
// 64 — swap to the front of the unsorted remainder. The engine sorts with
// exactly these swaps, so the pass is reproduced verbatim rather than
// replaced with a stable sort.
func prioritize(props []FlatProp) {
	priorities := map[int32]struct{}{64: {}}
	for _, fp := range props {
		priorities[fp.Prop.Priority] = struct{}{}
	}

	ordered := make([]int32, 0, len(priorities))
	for prio := range priorities {
		ordered = append(ordered, prio)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	offset := 0
	for _, prio := range ordered {
		for cursor := offset; cursor < len(props); cursor++ {
			p := props[cursor].Prop
			if p.Priority == prio || (p.HasFlag(FlagChangesOften) && prio == 64) {
				props[cursor], props[offset] = props[offset], props[cursor]
				offset++
			}
		}
	}
}
