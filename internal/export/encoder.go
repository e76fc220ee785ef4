package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding exported rows in xlsx artifacts
const SheetName = "Movements"

// Encoder streams the rows of one export artifact. The header row is
// written at construction. WriteRow may block when the downstream writer
// applies backpressure; Close flushes everything and must be called
// exactly once.
type Encoder interface {
	WriteRow(values []string) error
	Close() error
}

// NewEncoder returns the streaming encoder for the format, writing the
// header row derived from the column labels immediately.
func NewEncoder(format Format, columns []Column, w io.Writer) (Encoder, error) {
	if format == FormatXLSX {
		return newXLSXEncoder(columns, w)
	}
	return newCSVEncoder(columns, w)
}

type csvEncoder struct {
	w *csv.Writer
}

func newCSVEncoder(columns []Column, w io.Writer) (*csvEncoder, error) {
	enc := &csvEncoder{w: csv.NewWriter(w)}
	if err := enc.w.Write(Labels(columns)); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	return enc, nil
}

func (e *csvEncoder) WriteRow(values []string) error {
	if err := e.w.Write(values); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	return nil
}

func (e *csvEncoder) Close() error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// xlsxEncoder streams rows through excelize's StreamWriter, which spools
// them to temp storage instead of holding the sheet in memory. The
// workbook bytes reach the writer on Close.
type xlsxEncoder struct {
	file *excelize.File
	sw   *excelize.StreamWriter
	w    io.Writer
	row  int
}

func newXLSXEncoder(columns []Column, w io.Writer) (*xlsxEncoder, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open xlsx stream writer: %w", err)
	}

	enc := &xlsxEncoder{file: f, sw: sw, w: w, row: 1}
	if err := enc.WriteRow(Labels(columns)); err != nil {
		f.Close()
		return nil, err
	}
	return enc, nil
}

func (e *xlsxEncoder) WriteRow(values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, e.row)
	if err != nil {
		return fmt.Errorf("failed to locate xlsx row %d: %w", e.row, err)
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}

	if err := e.sw.SetRow(cell, cells); err != nil {
		return fmt.Errorf("failed to write xlsx row %d: %w", e.row, err)
	}

	e.row++
	return nil
}

func (e *xlsxEncoder) Close() error {
	defer e.file.Close()

	if err := e.sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush xlsx stream: %w", err)
	}

	if err := e.file.Write(e.w); err != nil {
		return fmt.Errorf("failed to write xlsx workbook: %w", err)
	}

	return nil
}
