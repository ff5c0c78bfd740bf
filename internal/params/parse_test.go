// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package params_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/tablegate/internal/catalog"
	"github.com/taibuivan/tablegate/internal/params"
	"github.com/taibuivan/tablegate/pkg/pointer"
)

func usersTable() *catalog.Table {
	return catalog.Build("users", []catalog.Column{
		{Name: "id", DataType: "integer", Nullable: false},
		{Name: "name", DataType: "text", Nullable: false},
		{Name: "email", DataType: "text", Nullable: false},
		{Name: "is_active", DataType: "boolean", Nullable: false},
		{Name: "created_at", DataType: "timestamp without time zone", Nullable: false},
		{Name: "age", DataType: "integer", Nullable: true},
		{Name: "score", DataType: "double precision", Nullable: true},
	}, "5001", catalog.Options{
		Schema:               "public",
		PrimaryKey:           "id",
		SoftDeleteCandidates: []string{"deleted_at", "is_deleted"},
	})
}

func mustParseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return values
}

/*
TestParseList_Filters covers the field[__op] grammar and value coercion.
*/
func TestParseList_Filters(t *testing.T) {
	table := usersTable()

	tests := []struct {
		name  string
		query string
		want  []params.Filter
	}{
		{
			"bare_key_is_equality",
			"email=a@x",
			[]params.Filter{{Field: "email", Op: params.OpEq, Raw: "a@x", Value: "a@x"}},
		},
		{
			"integer_coerced",
			"age=21",
			[]params.Filter{{Field: "age", Op: params.OpEq, Raw: "21", Value: int64(21)}},
		},
		{
			"integer_parse_failure_keeps_raw",
			"age=abc",
			[]params.Filter{{Field: "age", Op: params.OpEq, Raw: "abc", Value: "abc"}},
		},
		{
			"numeric_coerced",
			"score__gt=1.5",
			[]params.Filter{{Field: "score", Op: params.OpGt, Raw: "1.5", Value: 1.5}},
		},
		{
			"boolean_true",
			"is_active=true",
			[]params.Filter{{Field: "is_active", Op: params.OpEq, Raw: "true", Value: true}},
		},
		{
			"boolean_numeric_one",
			"is_active=1",
			[]params.Filter{{Field: "is_active", Op: params.OpEq, Raw: "1", Value: true}},
		},
		{
			"boolean_anything_else_false",
			"is_active=yes",
			[]params.Filter{{Field: "is_active", Op: params.OpEq, Raw: "yes", Value: false}},
		},
		{
			"range_operator",
			"age__gte=18",
			[]params.Filter{{Field: "age", Op: params.OpGte, Raw: "18", Value: int64(18)}},
		},
		{
			"like_operator",
			"name__ilike=%25ann%25",
			[]params.Filter{{Field: "name", Op: params.OpIlike, Raw: "%ann%", Value: "%ann%"}},
		},
		{
			"isnull_coerces_bool",
			"age__isnull=true",
			[]params.Filter{{Field: "age", Op: params.OpIsNull, Raw: "true", Value: true}},
		},
		{
			"isnull_false",
			"age__isnull=0",
			[]params.Filter{{Field: "age", Op: params.OpIsNull, Raw: "0", Value: false}},
		},
		{
			"in_splits_trims_coerces",
			"age__in=1,+2+,3",
			[]params.Filter{{Field: "age", Op: params.OpIn, Raw: "1, 2 ,3", Value: []any{int64(1), int64(2), int64(3)}}},
		},
		{
			"in_empty_list_dropped",
			"age__in=",
			nil,
		},
		{
			"unknown_field_dropped",
			"phone=123",
			nil,
		},
		{
			"unknown_suffix_is_whole_key",
			"age__between=1",
			nil,
		},
		{
			"known_field_with_unknown_suffix_dropped",
			"name__foo=x",
			nil,
		},
		{
			"reserved_names_never_filter",
			"limit=10&offset=5&order_by=name&select=id",
			nil,
		},
		{
			"repeated_key_one_filter_per_occurrence",
			"age__gte=18&age__gte=21",
			[]params.Filter{
				{Field: "age", Op: params.OpGte, Raw: "18", Value: int64(18)},
				{Field: "age", Op: params.OpGte, Raw: "21", Value: int64(21)},
			},
		},
		{
			"filters_canonically_sorted",
			"name=z&age=7",
			[]params.Filter{
				{Field: "age", Op: params.OpEq, Raw: "7", Value: int64(7)},
				{Field: "name", Op: params.OpEq, Raw: "z", Value: "z"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := params.ParseList(mustParseQuery(t, tt.query), table)
			assert.Equal(t, tt.want, q.Filters)

			// Invariant: every surviving filter references a descriptor column.
			for _, filter := range q.Filters {
				assert.True(t, table.HasColumn(filter.Field))
			}
		})
	}
}

/*
TestParseList_SortPagination covers order_by, limit and offset handling.
*/
func TestParseList_SortPagination(t *testing.T) {
	table := usersTable()

	t.Run("sort_directions_and_order", func(t *testing.T) {
		q := params.ParseList(mustParseQuery(t, "order_by=-created_at,name"), table)
		require.Len(t, q.Sort, 2)
		assert.Equal(t, params.SortKey{Field: "created_at", Desc: true}, q.Sort[0])
		assert.Equal(t, params.SortKey{Field: "name", Desc: false}, q.Sort[1])
	})

	t.Run("sort_unknown_fields_dropped", func(t *testing.T) {
		q := params.ParseList(mustParseQuery(t, "order_by=-phone,name,-fax"), table)
		assert.Equal(t, []params.SortKey{{Field: "name"}}, q.Sort)
	})

	t.Run("limit_positive_only", func(t *testing.T) {
		assert.Equal(t, pointer.To(2), params.ParseList(mustParseQuery(t, "limit=2"), table).Limit)
		assert.Nil(t, params.ParseList(mustParseQuery(t, "limit=0"), table).Limit)
		assert.Nil(t, params.ParseList(mustParseQuery(t, "limit=-1"), table).Limit)
		assert.Nil(t, params.ParseList(mustParseQuery(t, "limit=abc"), table).Limit)
	})

	t.Run("offset_non_negative", func(t *testing.T) {
		assert.Equal(t, pointer.To(0), params.ParseList(mustParseQuery(t, "offset=0"), table).Offset)
		assert.Equal(t, pointer.To(30), params.ParseList(mustParseQuery(t, "offset=30"), table).Offset)
		assert.Nil(t, params.ParseList(mustParseQuery(t, "offset=-1"), table).Offset)
		assert.Nil(t, params.ParseList(mustParseQuery(t, "offset=x"), table).Offset)
	})
}

/*
TestParseList_Projection covers the select parameter.
*/
func TestParseList_Projection(t *testing.T) {
	table := usersTable()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"valid_fields_sorted", "select=name,id", []string{"id", "name"}},
		{"unknown_dropped", "select=id,phone,name", []string{"id", "name"}},
		{"duplicates_removed", "select=id,id,name", []string{"id", "name"}},
		{"all_unknown_means_absent", "select=phone,fax", nil},
		{"empty_means_absent", "select=", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := params.ParseList(mustParseQuery(t, tt.query), table)
			assert.Equal(t, tt.want, q.Select)
		})
	}
}

/*
TestParseInsert covers returning and the on_conflict clause rules.
*/
func TestParseInsert(t *testing.T) {
	table := usersTable()

	t.Run("no_conflict_params", func(t *testing.T) {
		p := params.ParseInsert(mustParseQuery(t, ""), table)
		assert.Nil(t, p.OnConflict)
		assert.Nil(t, p.Returning)
	})

	t.Run("returning_like_select", func(t *testing.T) {
		p := params.ParseInsert(mustParseQuery(t, "returning=name,id,phone"), table)
		assert.Equal(t, []string{"id", "name"}, p.Returning)
	})

	t.Run("conflict_defaults_to_nothing", func(t *testing.T) {
		p := params.ParseInsert(mustParseQuery(t, "on_conflict=email"), table)
		require.NotNil(t, p.OnConflict)
		assert.Equal(t, "email", p.OnConflict.Column)
		assert.Equal(t, params.ActionNothing, p.OnConflict.Action)
	})

	t.Run("unknown_conflict_column_drops_clause", func(t *testing.T) {
		p := params.ParseInsert(mustParseQuery(t, "on_conflict=phone&on_conflict_update=name"), table)
		assert.Nil(t, p.OnConflict)
	})

	t.Run("conflict_update_list", func(t *testing.T) {
		p := params.ParseInsert(mustParseQuery(t, "on_conflict=email&on_conflict_update=name,age"), table)
		require.NotNil(t, p.OnConflict)
		assert.Equal(t, params.ActionUpdate, p.OnConflict.Action)
		assert.Equal(t, []string{"name", "age"}, p.OnConflict.UpdateColumns)
	})

	t.Run("conflict_update_all_invalid_falls_back_to_nothing", func(t *testing.T) {
		p := params.ParseInsert(mustParseQuery(t, "on_conflict=email&on_conflict_update=phone,fax"), table)
		require.NotNil(t, p.OnConflict)
		assert.Equal(t, params.ActionNothing, p.OnConflict.Action)
		assert.Empty(t, p.OnConflict.UpdateColumns)
	})

	t.Run("explicit_nothing_wins_over_update_list", func(t *testing.T) {
		p := params.ParseInsert(mustParseQuery(t, "on_conflict=email&on_conflict_action=nothing&on_conflict_update=name"), table)
		require.NotNil(t, p.OnConflict)
		assert.Equal(t, params.ActionNothing, p.OnConflict.Action)
	})
}

/*
TestParseUpdateDelete covers the verb-specific reserved names.
*/
func TestParseUpdateDelete(t *testing.T) {
	table := usersTable()

	t.Run("update_filters_and_returning", func(t *testing.T) {
		p := params.ParseUpdate(mustParseQuery(t, "is_active=false&returning=id"), table)
		require.Len(t, p.Filters, 1)
		assert.Equal(t, "is_active", p.Filters[0].Field)
		assert.Equal(t, []string{"id"}, p.Returning)
	})

	t.Run("delete_hard_flag", func(t *testing.T) {
		assert.True(t, params.ParseDelete(mustParseQuery(t, "hard_delete=true"), table).HardDelete)
		assert.True(t, params.ParseDelete(mustParseQuery(t, "hard_delete=1"), table).HardDelete)
		assert.False(t, params.ParseDelete(mustParseQuery(t, "hard_delete=yes"), table).HardDelete)
		assert.False(t, params.ParseDelete(mustParseQuery(t, ""), table).HardDelete)
	})

	t.Run("delete_filters_exclude_reserved", func(t *testing.T) {
		p := params.ParseDelete(mustParseQuery(t, "age__lt=18&hard_delete=true&returning=id"), table)
		require.Len(t, p.Filters, 1)
		assert.Equal(t, "age", p.Filters[0].Field)
	})
}

/*
TestPKFilter covers the /{id} equality synthesis and ID coercion.
*/
func TestPKFilter(t *testing.T) {
	table := usersTable()

	t.Run("numeric_id_coerced", func(t *testing.T) {
		filter := params.PKFilter(table, "42")
		assert.Equal(t, "id", filter.Field)
		assert.Equal(t, params.OpEq, filter.Op)
		assert.Equal(t, int64(42), filter.Value)
	})

	t.Run("non_numeric_id_kept_raw", func(t *testing.T) {
		filter := params.PKFilter(table, "abc")
		assert.Equal(t, "abc", filter.Value)
	})
}
