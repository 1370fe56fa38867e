package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/dataset"
	"ruleminer/internal"
	"ruleminer/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.csv":      FormatCSV,
		"b.CSV":      FormatCSV,
		"dir/c.xlsx": FormatXLSX,
	} {
		got, err := FormatOf(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatOf("data.parquet")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestStore_ReadCSV(t *testing.T) {
	path := writeFile(t, "in.csv", "\xEF\xBB\xBFid,name,,Name\n1,  Alice ,x\n2,Bob,y,z,extra\n,,,\n3,\"Smith, J\",,\n")
	rows, err := NewStore(internal.NewNopLogger()).Read(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"id", "name", "column_3", "Name_2"}, rows[0].Keys)
	name, _ := rows[0].Get("name")
	assert.Equal(t, "  Alice ", name)
	last, ok := rows[0].Get("Name_2")
	assert.True(t, ok)
	assert.Equal(t, "", last)
	quoted, _ := rows[2].Get("name")
	assert.Equal(t, "Smith, J", quoted)
}

func TestStore_ReadErrors(t *testing.T) {
	store := NewStore(internal.NewNopLogger())

	_, err := store.Read(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeIOError, errors.GetCode(err))

	_, err = store.Read(context.Background(), writeFile(t, "empty.csv", ""))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Read(ctx, writeFile(t, "ok.csv", "a\n1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(internal.NewNopLogger())
	src := writeFile(t, "in.csv", "city,amount\nParis,1.5\nparis,\nLyon,NA\n")
	rows, err := store.Read(context.Background(), src)
	require.NoError(t, err)

	for _, name := range []string{"out/result.csv", "out/result.xlsx"} {
		t.Run(name, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), name)
			require.NoError(t, store.Write(context.Background(), dst, rows))

			back, err := store.Read(context.Background(), dst)
			require.NoError(t, err)
			require.Len(t, back, 3)
			assert.Equal(t, []string{"city", "amount"}, back[0].Keys)
			for i := range rows {
				assert.Equal(t, rows[i].Values, back[i].Values)
			}
		})
	}
}

func TestToFrame(t *testing.T) {
	path := writeFile(t, "in.csv", "id,amount,price,city\n1,10.5,\"1,200\",Paris\n2,NA,3,Lyon\n3,7,4,Nice\n")
	rows, err := NewStore(internal.NewNopLogger()).Read(context.Background(), path)
	require.NoError(t, err)

	f, err := ToFrame(rows, coercer.Default)
	require.NoError(t, err)
	assert.Equal(t, 3, f.RowCount())
	assert.Equal(t, []string{"id", "amount", "price", "city"}, f.ColumnNames())

	amount, _ := f.Column("amount")
	assert.Equal(t, dataset.KindFloat, amount.Kind())
	assert.True(t, amount.IsNull(1))
	v, ok := amount.Float(0)
	assert.True(t, ok)
	assert.Equal(t, 10.5, v)

	price, _ := f.Column("price")
	assert.Equal(t, dataset.KindString, price.Kind())
	city, _ := f.Column("city")
	assert.Equal(t, dataset.KindString, city.Kind())

	raw, err := ToFrame(rows, nil)
	require.NoError(t, err)
	for _, col := range raw.Columns() {
		assert.True(t, col.IsString(), col.Name())
	}

	out := FromFrame(f)
	require.Len(t, out, 3)
	assert.Equal(t, f.ColumnNames(), out[0].Keys)
	blank, _ := out[1].Get("amount")
	assert.Equal(t, "", blank)
	first, _ := out[0].Get("amount")
	assert.Equal(t, "10.5", first)

	empty, err := ToFrame(nil, coercer.Default)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.RowCount())
}
