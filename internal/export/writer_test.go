package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w := NewWriter(t.TempDir())
	w.now = func() time.Time { return time.Date(2024, 3, 5, 11, 30, 7, 123_000_000, time.UTC) }
	return w
}

func TestWriter_Write(t *testing.T) {
	w := newTestWriter(t)

	artifact, err := w.Write(42, "positions", []Sheet{{
		Name:    DefaultSheetName,
		Columns: []string{"market", "size"},
		Rows:    [][]interface{}{{"BTC-USD", "0.5"}, {"ETH-USD", "2"}},
	}})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	wantPath := filepath.Join(w.Dir(), "42", "positions_2024-03-05T11-30-07-123Z.xlsx")
	if artifact.Path != wantPath {
		t.Errorf("path = %s, want %s", artifact.Path, wantPath)
	}
	if artifact.Timestamp != "2024-03-05T11-30-07-123Z" || artifact.Rows != 2 {
		t.Errorf("artifact = %+v", artifact)
	}

	f, err := excelize.OpenFile(artifact.Path)
	if err != nil {
		t.Fatalf("файл не открывается: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(DefaultSheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "market" || rows[2][0] != "ETH-USD" || rows[2][1] != "2" {
		t.Errorf("rows = %v", rows)
	}
}

func TestWriter_MultipleSheets(t *testing.T) {
	w := newTestWriter(t)

	artifact, err := w.Write(7, "accounts", []Sheet{
		{Name: "Accounts", Columns: []string{"id"}, Rows: [][]interface{}{{"a1"}}},
		{Name: "Open Positions - BTC-USD", Columns: []string{"market"}, Rows: [][]interface{}{{"BTC-USD"}}},
		{Name: "Open Positions - BTC-USD", Columns: []string{"market"}, Rows: [][]interface{}{{"BTC-USD"}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(artifact.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got := f.GetSheetList()
	want := []string{"Accounts", "Open Positions - BTC-USD", "Open Positions - BTC-USD (2)"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sheets = %v, want %v", got, want)
	}
}

func TestWriter_NoSheets(t *testing.T) {
	w := newTestWriter(t)
	if _, err := w.Write(1, "x", nil); !errors.Is(err, ErrNoSheets) {
		t.Errorf("err = %v, want ErrNoSheets", err)
	}
	if _, err := os.Stat(filepath.Join(w.Dir(), "1")); !os.IsNotExist(err) {
		t.Error("каталог пользователя не должен создаваться без листов")
	}
}

func TestSanitizeSheetName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Accounts", "Accounts"},
		{"a/b:c?d*e[f]g\\h", "a-b-c-d-e-f-g-h"},
		{"", DefaultSheetName},
		{"'quoted'", "quoted"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
	}
	for _, tt := range tests {
		if got := SanitizeSheetName(tt.in); got != tt.want {
			t.Errorf("SanitizeSheetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUniqueSheetName_LongName(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("y", 31)
	first := uniqueSheetName(long, used)
	second := uniqueSheetName(long, used)
	if first != long {
		t.Errorf("first = %s", first)
	}
	if len([]rune(second)) > 31 || !strings.HasSuffix(second, " (2)") {
		t.Errorf("second = %s", second)
	}
}
