package filter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Empty(t *testing.T) {
	cl, err := Filter{}.Compile()
	require.NoError(t, err)
	assert.Empty(t, cl.Joins)
	assert.Empty(t, cl.Where)
	assert.Empty(t, cl.Args)
	assert.Equal(t, "", cl.SQL())
}

func TestCompile_OneJoinPerConstraint(t *testing.T) {
	f := Filter{Constraints: []Constraint{
		{Name: "a", Op: "<", Value: Number(2)},
		{Name: "c", Op: "=", Value: Text("on")},
		{Name: "b", Op: ">=", Value: Number(3)},
	}}
	cl, err := f.Compile()
	require.NoError(t, err)
	require.Len(t, cl.Joins, 3)

	assert.Contains(t, cl.Joins[0], "FROM scan_numeric_meta")
	assert.Contains(t, cl.Joins[0], "value < ?")
	assert.Contains(t, cl.Joins[0], "AS m0 ON scan.id = m0.scan_id")

	assert.Contains(t, cl.Joins[1], "FROM scan_text_meta")
	assert.NotContains(t, cl.Joins[1], "scan_numeric_meta")
	assert.Contains(t, cl.Joins[1], "value = ?")
	assert.Contains(t, cl.Joins[1], "AS m1")

	assert.Contains(t, cl.Joins[2], "FROM scan_numeric_meta")
	assert.Contains(t, cl.Joins[2], "value >= ?")

	assert.Equal(t, []any{"a", 2.0, "c", "on", "b", 3.0}, cl.Args)
	assert.Empty(t, cl.Where)
}

func TestCompile_NamesAndValuesAreBound(t *testing.T) {
	evil := "x'; DROP TABLE scan; --"
	f := Filter{Constraints: []Constraint{
		{Name: evil, Op: "=", Value: Text(evil)},
	}}
	cl, err := f.Compile()
	require.NoError(t, err)
	assert.NotContains(t, cl.SQL(), "DROP")
	assert.Equal(t, []any{evil, evil}, cl.Args)
	assert.Equal(t, 2, strings.Count(cl.SQL(), "?"))
}

func TestCompile_InvalidOperator(t *testing.T) {
	for _, op := range []string{"", "==", "<>", "LIKE", "; DROP TABLE scan", "= 1 OR 1"} {
		f := Filter{Constraints: []Constraint{
			{Name: "a", Op: "<", Value: Number(1)},
			{Name: "b", Op: op, Value: Number(1)},
		}}
		cl, err := f.Compile()
		assert.ErrorIs(t, err, ErrInvalidOperator, "op=%q", op)
		assert.Empty(t, cl.Joins)
		assert.Empty(t, cl.Args)
	}
}

func TestCompile_ZeroValueRejected(t *testing.T) {
	_, err := Filter{Constraints: []Constraint{{Name: "a", Op: "="}}}.Compile()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestCompile_TimeBounds(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	begin := time.Date(2020, 6, 1, 0, 0, 0, 0, est)
	end := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("both", func(t *testing.T) {
		cl, err := Filter{Begin: &begin, End: &end}.Compile()
		require.NoError(t, err)
		assert.Equal(t, "WHERE scan.start_time_utc >= ? AND scan.start_time_utc <= ?", cl.Where)
		require.Len(t, cl.Args, 2)
		got := cl.Args[0].(time.Time)
		assert.Equal(t, time.UTC, got.Location())
		assert.True(t, got.Equal(begin))
		assert.Equal(t, 5, got.Hour())
	})

	t.Run("lower only", func(t *testing.T) {
		cl, err := Filter{Begin: &begin}.Compile()
		require.NoError(t, err)
		assert.Equal(t, "WHERE scan.start_time_utc >= ?", cl.Where)
		assert.Len(t, cl.Args, 1)
	})

	t.Run("upper only", func(t *testing.T) {
		cl, err := Filter{End: &end}.Compile()
		require.NoError(t, err)
		assert.Equal(t, "WHERE scan.start_time_utc <= ?", cl.Where)
		assert.Len(t, cl.Args, 1)
	})

	t.Run("after joins", func(t *testing.T) {
		cl, err := Filter{
			Begin:       &begin,
			Constraints: []Constraint{{Name: "a", Op: ">", Value: Number(0)}},
		}.Compile()
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(cl.SQL(), "WHERE scan.start_time_utc >= ?"))
		assert.Equal(t, "a", cl.Args[0])
		assert.IsType(t, time.Time{}, cl.Args[2])
	})
}

// The same name may be constrained against both EAV tables; each constraint
// is an independent join and all of them must hold.
func TestCompile_SameNameNumericAndText(t *testing.T) {
	f := Filter{Constraints: []Constraint{
		{Name: "c", Op: "=", Value: Number(100)},
		{Name: "c", Op: "=", Value: Text("on")},
	}}
	cl, err := f.Compile()
	require.NoError(t, err)
	require.Len(t, cl.Joins, 2)
	assert.Contains(t, cl.Joins[0], "scan_numeric_meta")
	assert.Contains(t, cl.Joins[1], "scan_text_meta")
	assert.Equal(t, []any{"c", 100.0, "c", "on"}, cl.Args)
}

func TestCompile_Deterministic(t *testing.T) {
	f := Filter{Constraints: []Constraint{
		{Name: "z", Op: "!=", Value: Text("off")},
		{Name: "a", Op: "<=", Value: Number(-1)},
	}}
	first, err := f.Compile()
	require.NoError(t, err)
	for range 10 {
		again, err := f.Compile()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, first.Joins[0], "scan_text_meta")
}

func TestCompileFor_CustomTables(t *testing.T) {
	tables := Tables{
		Owner: "run", OwnerID: "rid", OwnerTime: "started",
		ForeignKey: "run_id", Numeric: "run_f", Text: "run_s",
	}
	begin := time.Unix(0, 0)
	cl, err := Filter{
		Begin:       &begin,
		Constraints: []Constraint{{Name: "x", Op: ">", Value: Number(1)}},
	}.CompileFor(tables)
	require.NoError(t, err)
	assert.Equal(t,
		"JOIN (SELECT run_f.run_id FROM run_f WHERE run_f.name = ? AND run_f.value > ?) AS m0 ON run.rid = m0.run_id\nWHERE run.started >= ?",
		cl.SQL())
}

func TestConstraints(t *testing.T) {
	cs, err := Constraints(
		[]string{"a", "b", "c"},
		[]string{"<", "<", "="},
		[]any{2, 3.5, "on"},
	)
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, KindNumeric, cs[0].Value.Kind())
	assert.Equal(t, 2.0, cs[0].Value.Float())
	assert.Equal(t, KindText, cs[2].Value.Kind())
	assert.Equal(t, "on", cs[2].Value.String())
	assert.Equal(t, "c = text(on)", cs[2].String())
}

func TestConstraints_ShapeMismatch(t *testing.T) {
	cases := []struct {
		names  []string
		ops    []string
		values []any
	}{
		{[]string{"a"}, []string{"<", ">"}, []any{1, 2}},
		{[]string{"a", "b"}, []string{"<", ">"}, []any{1}},
		{nil, []string{"="}, nil},
	}
	for _, c := range cases {
		_, err := Constraints(c.names, c.ops, c.values)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	}
}

func TestConstraints_InvalidOperator(t *testing.T) {
	_, err := Constraints([]string{"a"}, []string{"=="}, []any{1})
	assert.ErrorIs(t, err, ErrInvalidOperator)
}

func TestConstraints_InvalidValue(t *testing.T) {
	_, err := Constraints([]string{"a"}, []string{"="}, []any{true})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(Text("x"))
	require.NoError(t, err)
	assert.Equal(t, KindText, v.Kind())

	v, err = ValueOf(int64(7))
	require.NoError(t, err)
	assert.Equal(t, 7.0, v.Arg())

	_, err = ValueOf(nil)
	assert.ErrorIs(t, err, ErrInvalidValue)

	assert.Equal(t, "2.5", Number(2.5).String())
	assert.Equal(t, "numeric", KindNumeric.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}

func TestValueOf_IntegerKinds(t *testing.T) {
	inputs := []any{
		int(3), int8(3), int16(3), int32(3), int64(3),
		uint(3), uint8(3), uint16(3), uint32(3), uint64(3),
		float32(3), float64(3),
	}
	for _, in := range inputs {
		v, err := ValueOf(in)
		require.NoError(t, err, "%T", in)
		assert.Equal(t, KindNumeric, v.Kind(), "%T", in)
		assert.Equal(t, 3.0, v.Float(), "%T", in)
	}

	cs, err := Constraints([]string{"a"}, []string{">="}, []any{uint(3)})
	require.NoError(t, err)
	assert.Equal(t, KindNumeric, cs[0].Value.Kind())
}

func TestValidOperator(t *testing.T) {
	for _, op := range Operators {
		assert.True(t, ValidOperator(op))
	}
	assert.False(t, ValidOperator("=>"))
}
