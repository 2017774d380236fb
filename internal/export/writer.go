// Package export пишет результаты запросов в xlsx файлы.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"snapbot/pkg/utils"
)

// DefaultSheetName - имя листа для выгрузок из одного листа
const DefaultSheetName = "Sheet 1"

// maxSheetNameLength - ограничение Excel на длину имени листа
const maxSheetNameLength = 31

var ErrNoSheets = errors.New("no sheets to write")

// Sheet - лист выгрузки: заголовок и строки значений
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]interface{}
}

// Artifact - записанный файл
type Artifact struct {
	Path      string
	Timestamp string
	Rows      int
}

// Writer пишет файлы в <dir>/<userID>/<prefix>_<timestamp>.xlsx
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter создает writer с корневым каталогом dir
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir возвращает корневой каталог выгрузок
func (w *Writer) Dir() string {
	return w.dir
}

// Write записывает листы в новый файл. Файл готов, когда Write вернул nil.
func (w *Writer) Write(userID int64, prefix string, sheets []Sheet) (*Artifact, error) {
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	userDir := filepath.Join(w.dir, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	timestamp := utils.FileTimestamp(w.now())
	path := filepath.Join(userDir, fmt.Sprintf("%s_%s.xlsx", prefix, timestamp))

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	used := make(map[string]bool, len(sheets))
	rows := 0
	for i, sheet := range sheets {
		name := uniqueSheetName(SanitizeSheetName(sheet.Name), used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("rename sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}

		if err := writeSheet(f, name, sheet, header); err != nil {
			return nil, err
		}
		rows += len(sheet.Rows)
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save %s: %w", path, err)
	}
	return &Artifact{Path: path, Timestamp: timestamp, Rows: rows}, nil
}

func writeSheet(f *excelize.File, name string, sheet Sheet, headerStyle int) error {
	if len(sheet.Columns) > 0 {
		columns := make([]interface{}, len(sheet.Columns))
		for i, c := range sheet.Columns {
			columns[i] = c
		}
		if err := f.SetSheetRow(name, "A1", &columns); err != nil {
			return fmt.Errorf("write header of %q: %w", name, err)
		}
		if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("style header of %q: %w", name, err)
		}
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %q: %w", i+1, name, err)
		}
	}
	return nil
}

// SanitizeSheetName приводит имя к правилам Excel: без : \ / ? * [ ] и не длиннее 31 символа
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = DefaultSheetName
	}
	if runes := []rune(name); len(runes) > maxSheetNameLength {
		name = string(runes[:maxSheetNameLength])
	}
	return name
}

// uniqueSheetName добавляет суффикс " (N)" к повторяющимся именам; регистр не учитывается
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := []rune(name)
		if len(base)+len(suffix) > maxSheetNameLength {
			base = base[:maxSheetNameLength-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
