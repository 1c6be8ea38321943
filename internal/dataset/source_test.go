package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadFileCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sales.csv")
	body := "\ufeffbrand,year,sales\nBMW,2010,\"1,200.5\"\nFord,2011\nToyota,2012,30\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	tb, err := LoadFile(context.Background(), p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", tb.Name)
	assert.Equal(t, []string{"brand", "year", "sales"}, tb.Header)
	require.Len(t, tb.Rows, 3)
	assert.Equal(t, []string{"Ford", "2011", ""}, tb.Rows[1])

	ds, err := New(tb, Schema{Dimensions: []string{"brand", "year"}, Measure: "sales"})
	require.NoError(t, err)
	assert.InDelta(t, 1230.5, ds.Total(), 1e-9)
}

func TestLoadFileTSVAndMaxRows(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sales.tsv")
	body := "brand\tsales\nA\t1\nB\t2\nC\t3\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	tb, err := LoadFile(context.Background(), p, LoadOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Len(t, tb.Rows, 2)
	require.Len(t, tb.Warnings, 1)
	assert.Contains(t, tb.Warnings[0], "2/3")
}

func TestLoadFileSniffsHeaderDelimiter(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"semi.csv": "brand;year;sales\nBMW;2010;\"1,5\"\nFord;2011;7\n",
		"tabs.csv": "brand\tyear\tsales\nBMW\t2010\t12\n",
		"semi.tsv": "brand;year;sales\nBMW;2010;12\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
			tb, err := LoadFile(context.Background(), p, LoadOptions{})
			require.NoError(t, err)
			assert.Equal(t, []string{"brand", "year", "sales"}, tb.Header)
			assert.Equal(t, "BMW", tb.Rows[0][0])
			assert.Len(t, tb.Rows[0], 3)
		})
	}

	p := filepath.Join(dir, "semi.csv")
	tb, err := LoadFile(context.Background(), p, LoadOptions{Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"brand;year;sales"}, tb.Header)
}

func TestSniffDelimiter(t *testing.T) {
	cases := []struct {
		path, header string
		want         rune
	}{
		{"a.csv", "a,b,c", ','},
		{"a.csv", "a;b;c", ';'},
		{"a.csv", "a\tb", '\t'},
		{"a.csv", "a;b,c;d", ';'},
		{"a.csv", "amount", ','},
		{"a.tsv", "amount", '\t'},
		{"a.tsv", "a,b;c", '\t'},
		{"a.csv", "", ','},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sniffDelimiter(tc.path, []byte(tc.header)), "%s %q", tc.path, tc.header)
	}
}

func TestLoadFileUnsupported(t *testing.T) {
	_, err := LoadFile(context.Background(), "notes.docx", LoadOptions{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestReadCSVRejectsEmptyInput(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""), ',', 0)
	assert.Error(t, err)
}

func TestLoadFileXLSXSheetSelection(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "book.xlsx")

	f := excelize.NewFile()
	_, err := f.NewSheet("Sales")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"unused"}))
	require.NoError(t, f.SetSheetRow("Sales", "A1", &[]any{"brand", "year", "sales"}))
	require.NoError(t, f.SetSheetRow("Sales", "A2", &[]any{"BMW", 2010, 12.5}))
	require.NoError(t, f.SetSheetRow("Sales", "A3", &[]any{"Ford", 2011}))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	tb, err := LoadFile(context.Background(), p, LoadOptions{SheetName: "sales"})
	require.NoError(t, err)
	assert.Equal(t, []string{"brand", "year", "sales"}, tb.Header)
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, []string{"BMW", "2010", "12.5"}, tb.Rows[0])
	assert.Equal(t, []string{"Ford", "2011", ""}, tb.Rows[1])

	byIndex, err := LoadFile(context.Background(), p, LoadOptions{SheetIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, tb.Rows, byIndex.Rows)

	_, err = LoadFile(context.Background(), p, LoadOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available sheets: Sheet1, Sales")
}

func TestLoadSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "sales.db")
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.MustExec(`CREATE TABLE sales (brand TEXT, year INTEGER, amount REAL)`)
	db.MustExec(`INSERT INTO sales VALUES ('BMW', 2010, 10.5), ('Ford', 2011, NULL), ('Toyota', 2012, 7)`)
	require.NoError(t, db.Close())

	tb, err := LoadSQL(context.Background(), "sqlite", dsn, "SELECT brand, year, amount FROM sales ORDER BY year", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"brand", "year", "amount"}, tb.Header)
	require.Len(t, tb.Rows, 3)
	assert.Equal(t, []string{"BMW", "2010", "10.5"}, tb.Rows[0])
	assert.Equal(t, []string{"Ford", "2011", ""}, tb.Rows[1])
	assert.Equal(t, []string{"Toyota", "2012", "7"}, tb.Rows[2])
}

func TestNormalizeDriver(t *testing.T) {
	d, err := NormalizeDriver("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d)
	_, err = NormalizeDriver("mysql")
	assert.Error(t, err)
}
