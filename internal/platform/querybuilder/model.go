package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
)

// InsertModel builds an INSERT from the db tags of model. Fields tagged
// `db:"col,readonly"` (serial ids, defaulted timestamps) are left out.
func InsertModel(table string, model any, suffix string) (string, []any, error) {
	cols, vals, err := columnsAndValuesFromModel(model)
	if err != nil {
		return "", nil, err
	}
	return InsertInto(table).
		Columns(cols...).
		Values(vals...).
		Suffix(suffix).
		ToSQL()
}

// InsertModels builds a multi-row INSERT; every model must share one struct type.
func InsertModels[T any](table string, models []T, suffix string) (string, []any, error) {
	if len(models) == 0 {
		return "", nil, fmt.Errorf("insert models are required")
	}

	builder := InsertInto(table)
	var columns []string
	for idx, model := range models {
		cols, vals, err := columnsAndValuesFromModel(model)
		if err != nil {
			return "", nil, fmt.Errorf("model %d: %w", idx, err)
		}
		if idx == 0 {
			columns = cols
			builder.Columns(cols...)
		}
		builder.Values(vals...)
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("model has no db columns")
	}

	return builder.Suffix(suffix).ToSQL()
}

func columnsAndValuesFromModel(model any) ([]string, []any, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, nil, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("model must be struct")
	}

	typ := value.Type()
	cols := make([]string, 0, typ.NumField())
	vals := make([]any, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue
		}
		tag := strings.TrimSpace(field.Tag.Get("db"))
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		col := strings.TrimSpace(parts[0])
		if col == "" || col == "-" || hasTagOption(parts[1:], "readonly") {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, value.Field(i).Interface())
	}

	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("model has no db columns")
	}
	return cols, vals, nil
}

func hasTagOption(options []string, want string) bool {
	for _, opt := range options {
		if strings.TrimSpace(opt) == want {
			return true
		}
	}
	return false
}
