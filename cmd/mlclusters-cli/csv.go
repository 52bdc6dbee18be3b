package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
)

// readCSV loads a local CSV of already-recoded numeric columns, optionally
// treating the last column as a target symbol, into an in-memory Instance
// slice (§4.13 — the CLI drives the Engine facade directly, never a
// network endpoint).
func readCSV(path string, hasTarget bool, hasHeader bool) ([]clustering.Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mlclusters-cli: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	if hasHeader {
		if _, err := r.Read(); err != nil {
			return nil, fmt.Errorf("mlclusters-cli: reading header of %s: %w", path, err)
		}
	}
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mlclusters-cli: %s has no data rows", path)
	}

	instances := make([]clustering.Instance, 0, len(rows))
	for i, row := range rows {
		numericCols := row
		var target string
		if hasTarget {
			numericCols = row[:len(row)-1]
			target = row[len(row)-1]
		}
		values := make([]float64, len(numericCols))
		for j, cell := range numericCols {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("mlclusters-cli: row %d column %d: %w", i, j, err)
			}
			values[j] = v
		}
		instances = append(instances, clustering.Instance{ID: int64(i), Values: values, Target: target})
	}
	return instances, nil
}

// identityMask returns a K-Means feature mask covering every position of a
// dim-wide Instance (the CLI's CSV has no inactive columns to carve out).
func identityMask(dim int) []int {
	mask := make([]int, dim)
	for i := range mask {
		mask[i] = i
	}
	return mask
}

func distinctTargets(instances []clustering.Instance) []string {
	seen := make(map[string]bool)
	var out []string
	for _, inst := range instances {
		if inst.Target == "" || seen[inst.Target] {
			continue
		}
		seen[inst.Target] = true
		out = append(out, inst.Target)
	}
	return out
}
