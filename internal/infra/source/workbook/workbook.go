// Package workbook reads and writes planner collections in a local .xlsx
// workbook with one sheet per collection.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

const scratchSheet = "_mvpplan_scratch"

// Workbook is a collection source backed by an .xlsx file. The file is
// reopened on every fetch so edits are picked up without a restart.
type Workbook struct {
	path string
	mu   sync.Mutex
}

// New returns a workbook source for path.
func New(path string) *Workbook {
	return &Workbook{path: path}
}

// Path returns the workbook location.
func (w *Workbook) Path() string { return w.path }

// Fetch reads the sheet named after the collection. The first row is the
// header; short rows are padded with empty cells and rows with every cell
// empty are dropped. A missing sheet returns core.ErrNotFound.
func (w *Workbook) Fetch(_ context.Context, name domain.CollectionName) ([]domain.Record, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if idx, err := f.GetSheetIndex(string(name)); err != nil || idx < 0 {
		return nil, core.ErrNotFound
	}
	rows, err := f.GetRows(string(name))
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}
	return decodeRows(rows), nil
}

func decodeRows(rows [][]string) []domain.Record {
	out := []domain.Record{}
	if len(rows) == 0 {
		return out
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	for _, row := range rows[1:] {
		if len(row) > len(header) {
			continue
		}
		rec := make(domain.Record, len(header))
		empty := true
		for i, h := range header {
			var v string
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			rec[h] = v
			if v != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}

// Store replaces the collection's sheet, creating the workbook when needed.
// Columns are written in ascending header order.
func (w *Workbook) Store(_ context.Context, name domain.CollectionName, records []domain.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
	} else if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := string(name)
	if idx, _ := f.GetSheetIndex(sheet); idx >= 0 {
		// excelize never deletes the last remaining sheet.
		if f.SheetCount == 1 {
			if _, err := f.NewSheet(scratchSheet); err != nil {
				return fmt.Errorf("create scratch sheet: %w", err)
			}
		}
		if err := f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("reset sheet %s: %w", sheet, err)
		}
	}
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	f.SetActiveSheet(idx)
	for _, leftover := range []string{"Sheet1", scratchSheet} {
		if i, _ := f.GetSheetIndex(leftover); i >= 0 {
			if err := f.DeleteSheet(leftover); err != nil {
				return fmt.Errorf("remove sheet %s: %w", leftover, err)
			}
		}
	}

	header := headerOf(records)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		row := make([]string, len(header))
		for j, h := range header {
			row[j] = rec[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func headerOf(records []domain.Record) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(seen))
	for k := range seen {
		header = append(header, k)
	}
	sort.Strings(header)
	return header
}
