package sendtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/rewind/errs"
	"github.com/arloliu/rewind/wire"
)

func intProp(name string, prio int32) wire.SendPropDef {
	return wire.SendPropDef{Type: int32(TypeInt), VarName: name, Priority: prio, NumBits: 8}
}

func flagProp(name string, flags Flag, prio int32) wire.SendPropDef {
	return wire.SendPropDef{Type: int32(TypeInt), VarName: name, Flags: int32(flags), Priority: prio, NumBits: 8}
}

func dtProp(name, ref string, flags Flag) wire.SendPropDef {
	return wire.SendPropDef{Type: int32(TypeDataTable), VarName: name, DTName: ref, Flags: int32(flags), Priority: 64}
}

func excludeProp(table, name string) wire.SendPropDef {
	return wire.SendPropDef{Type: int32(TypeInt), VarName: name, DTName: table, Flags: int32(FlagExclude), Priority: 64}
}

func registry(tables ...*wire.SendTable) *Registry {
	r := NewRegistry()
	for _, t := range tables {
		r.Insert(NewSendTable(t))
	}

	return r
}

func names(t FlatSendTable) []string {
	out := make([]string, len(t.Properties))
	for i, p := range t.Properties {
		out[i] = p.Name
	}

	return out
}

func TestFlattenBindsArrayElements(t *testing.T) {
	r := registry(&wire.SendTable{
		NetTableName: "DT_Test",
		Props: []wire.SendPropDef{
			flagProp("m_element", FlagInsideArray, 64),
			{Type: int32(TypeArray), VarName: "m_array", NumElements: 4, Priority: 64},
		},
	})

	_, err := r.Flatten()
	require.NoError(t, err)

	tbl, err := r.ByName("DT_Test")
	require.NoError(t, err)
	arr, err := tbl.PropByName("m_array")
	require.NoError(t, err)

	elem, err := arr.ArrayElem()
	require.NoError(t, err)
	assert.Equal(t, "m_element", elem.Name)
}

func TestFlattenFailsOnLeadingArray(t *testing.T) {
	r := registry(&wire.SendTable{
		NetTableName: "DT_Bad",
		Props: []wire.SendPropDef{
			{Type: int32(TypeArray), VarName: "m_array", NumElements: 4, Priority: 64},
		},
	})

	_, err := r.Flatten()
	assert.ErrorIs(t, err, errs.ErrInvalidArrayProp)
}

// An EXCLUDE in T1 suppresses T2.propX even though T2 is reached through a
// DataTable; propY survives.
func TestFlattenExcludes(t *testing.T) {
	r := registry(
		&wire.SendTable{
			NetTableName: "DT_T2",
			Props: []wire.SendPropDef{
				intProp("propX", 64),
				intProp("propY", 64),
			},
		},
		&wire.SendTable{
			NetTableName: "DT_T1",
			Props: []wire.SendPropDef{
				excludeProp("DT_T2", "propX"),
				dtProp("baseclass", "DT_T2", 0),
				intProp("propZ", 64),
			},
		},
	)

	flat, err := r.Flatten()
	require.NoError(t, err)
	require.Len(t, flat, 2)

	t1 := flat[1]
	assert.Equal(t, "DT_T1", t1.Name)
	assert.Equal(t, []string{".baseclass.propY", ".propZ"}, names(t1))
}

// Non-collapsible child tables flatten ahead of the parent's own leaf
// props; collapsible ones inline at their position with an unchanged path.
func TestFlattenHierarchyOrder(t *testing.T) {
	r := registry(
		&wire.SendTable{
			NetTableName: "DT_Base",
			Props: []wire.SendPropDef{
				intProp("m_iBase", 64),
			},
		},
		&wire.SendTable{
			NetTableName: "DT_Mixin",
			Props: []wire.SendPropDef{
				intProp("m_iMixin", 64),
			},
		},
		&wire.SendTable{
			NetTableName: "DT_Derived",
			Props: []wire.SendPropDef{
				dtProp("baseclass", "DT_Base", 0),
				intProp("m_iOwn", 64),
				dtProp("mixin", "DT_Mixin", FlagCollapsible),
			},
		},
	)

	flat, err := r.Flatten()
	require.NoError(t, err)

	derived := flat[2]
	assert.Equal(t, []string{".baseclass.m_iBase", ".m_iOwn", ".m_iMixin"}, names(derived))
}

func TestFlattenPrioritySort(t *testing.T) {
	r := registry(&wire.SendTable{
		NetTableName: "DT_Prio",
		Props: []wire.SendPropDef{
			intProp("p128", 128),
			intProp("p32a", 32),
			flagProp("often", FlagChangesOften, 200),
			intProp("p32b", 32),
			intProp("p64", 64),
		},
	})

	flat, err := r.Flatten()
	require.NoError(t, err)

	got := names(flat[0])
	// 32s first in original order, then the 64 bucket (real 64s and
	// CHANGES_OFTEN), then 128.
	assert.Equal(t, []string{".p32a", ".p32b", ".often", ".p64", ".p128"}, got)
}

func TestFlattenPriorityInvariant(t *testing.T) {
	r := registry(&wire.SendTable{
		NetTableName: "DT_Inv",
		Props: []wire.SendPropDef{
			intProp("a", 96),
			flagProp("b", FlagChangesOften, 255),
			intProp("c", 0),
			intProp("d", 96),
			intProp("e", 64),
			intProp("f", 0),
		},
	})

	flat, err := r.Flatten()
	require.NoError(t, err)

	effective := func(p *SendProp) int32 {
		if p.HasFlag(FlagChangesOften) {
			return 64
		}

		return p.Priority
	}

	props := flat[0].Properties
	for i := 1; i < len(props); i++ {
		assert.LessOrEqual(t, effective(props[i-1].Prop), effective(props[i].Prop),
			"priority order violated at %d (%s -> %s)", i, props[i-1].Name, props[i].Name)
	}
}

func TestFlattenDeterministic(t *testing.T) {
	build := func() []FlatSendTable {
		r := registry(
			&wire.SendTable{
				NetTableName: "DT_A",
				Props: []wire.SendPropDef{
					intProp("x", 64),
					intProp("y", 32),
				},
			},
			&wire.SendTable{
				NetTableName: "DT_B",
				Props: []wire.SendPropDef{
					dtProp("baseclass", "DT_A", 0),
					flagProp("z", FlagChangesOften, 100),
					intProp("w", 90),
				},
			},
		)

		flat, err := r.Flatten()
		require.NoError(t, err)

		return flat
	}

	first := build()
	second := build()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, names(first[i]), names(second[i]))
	}
}

func TestFlattenUnknownReference(t *testing.T) {
	r := registry(&wire.SendTable{
		NetTableName: "DT_Dangling",
		Props: []wire.SendPropDef{
			dtProp("baseclass", "DT_Missing", 0),
		},
	})

	_, err := r.Flatten()
	assert.ErrorIs(t, err, errs.ErrUnknownTable)
}
