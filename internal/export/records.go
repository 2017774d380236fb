package export

import (
	"fmt"
	"reflect"
	"strings"
)

// SheetOf строит лист из среза структур: колонки берутся из json тегов.
// Поля с тегом xlsx:"-", неэкспортируемые и составные (map, slice, struct) пропускаются.
func SheetOf(name string, records interface{}) (Sheet, error) {
	v := reflect.ValueOf(records)
	if v.Kind() != reflect.Slice {
		return Sheet{}, fmt.Errorf("records must be a slice, got %T", records)
	}

	elem := v.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return Sheet{}, fmt.Errorf("records must be a slice of structs, got %T", records)
	}

	fields := columnsOf(elem)
	sheet := Sheet{Name: name, Columns: make([]string, len(fields))}
	for i, f := range fields {
		sheet.Columns[i] = f.name
	}

	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() == reflect.Ptr {
			if item.IsNil() {
				continue
			}
			item = item.Elem()
		}
		row := make([]interface{}, len(fields))
		for j, f := range fields {
			row[j] = fmt.Sprint(item.Field(f.index).Interface())
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

type column struct {
	name  string
	index int
}

func columnsOf(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Tag.Get("xlsx") == "-" {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Map, reflect.Slice, reflect.Struct, reflect.Ptr, reflect.Interface:
			continue
		}

		name := f.Name
		if tag := f.Tag.Get("json"); tag != "" {
			if tagName := strings.Split(tag, ",")[0]; tagName == "-" {
				continue
			} else if tagName != "" {
				name = tagName
			}
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}
