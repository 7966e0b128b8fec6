package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"routeaudit/internal/refdata"
	dErrors "routeaudit/pkg/domain-errors"
)

var categorySheets = map[refdata.Category]string{
	refdata.CategoryLeader:  "Leaders",
	refdata.CategoryTeam:    "Teams",
	refdata.CategoryRoute:   "Routes",
	refdata.CategoryMachine: "Machines",
	refdata.CategorySection: "Sections",
}

// Workbook persists reference data in an xlsx workbook: one sheet per
// category with values in column A under a header row. The Sections sheet
// adds a stable numeric ID column so removing a section never renumbers the
// survivors.
type Workbook struct {
	path string
	mu   sync.Mutex
}

// NewWorkbook constructs a workbook store at path, creating the workbook with
// its category sheets when absent.
func NewWorkbook(path string) (*Workbook, error) {
	s := &Workbook{path: path}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s, nil
}

func (s *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "open reference workbook")
	}
	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", categorySheets[refdata.CategoryLeader]); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "initialize reference workbook")
	}
	for _, category := range refdata.Categories() {
		sheet := categorySheets[category]
		if sheet != categorySheets[refdata.CategoryLeader] {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodePersistence, "initialize reference workbook")
			}
		}
		header := []interface{}{"Value"}
		if category == refdata.CategorySection {
			header = []interface{}{"ID", "Title"}
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "initialize reference workbook")
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "save reference workbook")
	}
	return f, nil
}

func (s *Workbook) List(ctx context.Context, category refdata.Category) ([]string, error) {
	if category == refdata.CategorySection {
		sections, err := s.ListSections(ctx)
		if err != nil {
			return nil, err
		}
		titles := make([]string, 0, len(sections))
		for _, sec := range sections {
			titles = append(titles, sec.Title)
		}
		return titles, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values, err := s.columnValues(f, categorySheets[category])
	if err != nil {
		return nil, err
	}
	return values, nil
}

// columnValues returns column A below the header, skipping blank cells.
func (s *Workbook) columnValues(f *excelize.File, sheet string) ([]string, error) {
	cols, err := f.GetCols(sheet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read reference sheet")
	}
	values := make([]string, 0)
	if len(cols) == 0 {
		return values, nil
	}
	for i, v := range cols[0] {
		if i == 0 || v == "" {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

func (s *Workbook) Add(_ context.Context, category refdata.Category, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := categorySheets[category]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "read reference sheet")
	}

	if category == refdata.CategorySection {
		nextID := 1
		for i, row := range rows {
			if i == 0 || len(row) < 2 {
				continue
			}
			if row[1] == value {
				return ErrAlreadyExists
			}
			if id, err := strconv.Atoi(row[0]); err == nil && id >= nextID {
				nextID = id + 1
			}
		}
		cell := fmt.Sprintf("A%d", len(rows)+1)
		row := []interface{}{strconv.Itoa(nextID), value}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "append section row")
		}
		return s.save(f)
	}

	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if row[0] == value {
			return ErrAlreadyExists
		}
	}
	cell := fmt.Sprintf("A%d", len(rows)+1)
	row := []interface{}{value}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "append reference row")
	}
	return s.save(f)
}

func (s *Workbook) Remove(_ context.Context, category refdata.Category, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := categorySheets[category]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "read reference sheet")
	}
	valueColumn := 0
	if category == refdata.CategorySection {
		valueColumn = 1
	}
	for i, row := range rows {
		if i == 0 || len(row) <= valueColumn {
			continue
		}
		if row[valueColumn] != value {
			continue
		}
		// RemoveRow shifts later rows up; section IDs live in their own
		// column, so survivors keep their identifiers.
		if err := f.RemoveRow(sheet, i+1); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "remove reference row")
		}
		return s.save(f)
	}
	return ErrNotFound
}

func (s *Workbook) ListSections(_ context.Context) ([]refdata.SectionDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(categorySheets[refdata.CategorySection])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read sections sheet")
	}
	sections := make([]refdata.SectionDefinition, 0)
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		id, err := strconv.Atoi(row[0])
		if err != nil {
			continue
		}
		sections = append(sections, refdata.SectionDefinition{ID: id, Title: row[1]})
	}
	return sections, nil
}

func (s *Workbook) save(f *excelize.File) error {
	if err := f.Save(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "save reference workbook")
	}
	return nil
}
