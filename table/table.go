// Package table loads regression-model tables.
//
// A table is a headerless two-column CSV: the first column is a product
// expression of predictor names (or the reserved intercept marker), the
// second the term's coefficient. Row order is preserved because it defines
// summation order in the compiled expression.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/therealspring/carbonscen/expr"
)

// Load reads regression terms from CSV content.
func Load(r io.Reader) ([]expr.Term, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var terms []expr.Term
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table row %d: %w", line, err)
		}

		expression := strings.TrimSpace(record[0])
		coefficient, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("table row %d: bad coefficient %q: %w", line, record[1], err)
		}

		terms = append(terms, expr.Term{Expression: expression, Coefficient: coefficient})
	}

	return terms, nil
}

// LoadFile reads regression terms from a CSV file on disk.
func LoadFile(path string) ([]expr.Term, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	terms, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return terms, nil
}
