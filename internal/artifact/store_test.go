package artifact

// ============================================================================
// Artifact Store test file
// Covers: atomic writes, backups, name validation, XLSX conversion
// ============================================================================

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ChuLiYu/rowplan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Store
// ============================================================================

func TestNewStore(t *testing.T) {
	store := NewStore("", false)
	assert.Equal(t, ".", store.Dir())
	assert.Equal(t, filepath.Join("out", "a.svg"), NewStore("out", false).Path("a.svg"))
}

func TestSave_CreatesDirAndWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	store := NewStore(dir, false)

	path, err := store.Save("timing-results.csv", []byte("hole_id\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "timing-results.csv"), path)
	assert.True(t, store.Exists("timing-results.csv"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hole_id\n1\n", string(got))
}

func TestSave_OverwritesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, false)

	_, err := store.Save("surface.svg", []byte("first"))
	require.NoError(t, err)
	_, err = store.Save("surface.svg", []byte("second"))
	require.NoError(t, err)

	got, _ := os.ReadFile(store.Path("surface.svg"))
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files remain")
}

func TestSave_Backup(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, true)
	store.now = func() time.Time { return time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC) }

	_, err := store.Save("timing-results.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("timing-results.csv", []byte("new"))
	require.NoError(t, err)

	backup, err := os.ReadFile(filepath.Join(dir, "timing-results.csv.20240301_103000"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(backup))

	current, _ := os.ReadFile(store.Path("timing-results.csv"))
	assert.Equal(t, "new", string(current))
}

func TestSave_RejectsBadNames(t *testing.T) {
	store := NewStore(t.TempDir(), false)

	_, err := store.Save("", nil)
	assert.True(t, errors.Is(err, ErrEmptyName))

	for _, name := range []string{"../x.csv", "a/b.csv", ".."} {
		_, err := store.Save(name, []byte("x"))
		assert.True(t, errors.Is(err, ErrInvalidName), name)
	}
}

func TestSave_Concurrent(t *testing.T) {
	store := NewStore(t.TempDir(), false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Save("surface.png", []byte("png"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := os.ReadFile(store.Path("surface.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))
}

// ============================================================================
// Workbook
// ============================================================================

func TestXLSXName(t *testing.T) {
	assert.Equal(t, "timing-results.xlsx", XLSXName("timing-results.csv"))
}

func TestTimingWorkbook(t *testing.T) {
	csvContent := []byte("hole_id,row_id,position_in_row,delay_ms,row_reference_hole\n1,1,1,0,\n2,1,2,17,\n")
	summary := []types.SummaryRow{
		{Section: "timings", Name: "row_1_hole_to_hole_ms", Value: 17},
		{Section: "holes_per_8ms", Name: "0-8", Value: 1},
	}

	data, err := TimingWorkbook(csvContent, summary)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{TimingSheet, SummarySheet}, f.GetSheetList())

	header, err := f.GetCellValue(TimingSheet, "D1")
	require.NoError(t, err)
	assert.Equal(t, "delay_ms", header)
	delay, err := f.GetCellValue(TimingSheet, "D3")
	require.NoError(t, err)
	assert.Equal(t, "17", delay)

	name, err := f.GetCellValue(SummarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "0-8", name)
}

func TestTimingWorkbook_BadCSV(t *testing.T) {
	_, err := TimingWorkbook([]byte("a,b\n\"unterminated"), nil)
	assert.Error(t, err)
}
