package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

var errTableMissing = errors.New("table not found in archive")

// findTable locates a table by file name. Matching ignores case and any
// directory prefix, so "feed/Stops.TXT" satisfies "stops.txt".
func findTable(zr *zip.Reader, name string) *zip.File {
	name = strings.ToLower(name)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		p := strings.ToLower(strings.ReplaceAll(f.Name, "\\", "/"))
		if p == name || strings.HasSuffix(p, "/"+name) {
			return f
		}
	}
	return nil
}

// readTable decodes the named table into a slice of T. A missing table
// yields errTableMissing; callers decide whether that is fatal.
func readTable[T any](zr *zip.Reader, name string) ([]T, error) {
	f := findTable(zr, name)
	if f == nil {
		return nil, errTableMissing
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	rows, err := parseCSV[T](rc)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.Name, err)
	}
	return rows, nil
}

// parseCSV decodes delimited text into a slice of T using its csv tags.
func parseCSV[T any](r io.Reader) ([]T, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	// header aliases the reader's buffer when ReuseRecord is set
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\xef\xbb\xbf")
	}

	fieldMap := buildFieldMap[T](header)

	var results []T
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		results = append(results, decodeRecord[T](record, fieldMap))
	}
	return results, nil
}

type fieldMapping struct {
	csvIndex   int
	fieldIndex int
}

// buildFieldMap maps CSV column positions to struct field positions.
func buildFieldMap[T any](header []string) []fieldMapping {
	var t T
	typ := reflect.TypeOf(t)

	tagToField := make(map[string]int)
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("csv"); tag != "" {
			tagToField[tag] = i
		}
	}

	var mappings []fieldMapping
	for csvIdx, colName := range header {
		colName = strings.ToLower(strings.TrimSpace(colName))
		if fieldIdx, ok := tagToField[colName]; ok {
			mappings = append(mappings, fieldMapping{csvIndex: csvIdx, fieldIndex: fieldIdx})
		}
	}
	return mappings
}

// decodeRecord fills a struct T from a CSV record using the field mapping.
func decodeRecord[T any](record []string, fieldMap []fieldMapping) T {
	var t T
	v := reflect.ValueOf(&t).Elem()
	for _, fm := range fieldMap {
		if fm.csvIndex < len(record) {
			v.Field(fm.fieldIndex).SetString(strings.TrimSpace(record[fm.csvIndex]))
		}
	}
	return t
}
