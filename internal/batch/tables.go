package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
)

// rowReader yields up to n rows per call and an empty slice at the end
type rowReader interface {
	Read(n int) ([]SpanRow, error)
	Close() error
}

type rowWriter interface {
	Write(rows []SpanRow) error
	Close() error
}

func openReader(path string) (rowReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open span table: %w", err)
	}

	var r rowReader
	switch DetectFileFormat(path) {
	case FormatParquet:
		r = &parquetReader{file: file, reader: parquet.NewGenericReader[SpanRow](file)}
	case FormatJSON:
		r = &jsonReader{file: file, decoder: json.NewDecoder(file)}
	default:
		r, err = newCSVReader(file)
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func createWriter(path string) (rowWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output table: %w", err)
	}

	switch DetectFileFormat(path) {
	case FormatParquet:
		return &parquetWriter{file: file, writer: parquet.NewGenericWriter[SpanRow](file)}, nil
	case FormatJSON:
		return &jsonWriter{file: file, encoder: json.NewEncoder(file)}, nil
	default:
		w := &csvWriter{file: file, writer: csv.NewWriter(file)}
		if err := w.writer.Write([]string{"document", "page", "text", "category", "substitute"}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		return w, nil
	}
}

type csvReader struct {
	file    *os.File
	reader  *csv.Reader
	columns map[string]int
	line    int
}

func newCSVReader(file *os.File) (*csvReader, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"text", "category"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header lacks a %q column", required)
		}
	}

	return &csvReader{file: file, reader: reader, columns: columns, line: 1}, nil
}

func (r *csvReader) field(record []string, name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func (r *csvReader) Read(n int) ([]SpanRow, error) {
	var rows []SpanRow
	for len(rows) < n {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		r.line++
		if err != nil {
			return rows, fmt.Errorf("line %d: %w", r.line, err)
		}

		row := SpanRow{
			Document: r.field(record, "document"),
			Text:     r.field(record, "text"),
			Category: r.field(record, "category"),
		}
		if page := strings.TrimSpace(r.field(record, "page")); page != "" {
			row.Page, err = strconv.ParseInt(page, 10, 64)
			if err != nil {
				return rows, fmt.Errorf("line %d: invalid page %q", r.line, page)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *csvReader) Close() error { return r.file.Close() }

type csvWriter struct {
	file   *os.File
	writer *csv.Writer
}

func (w *csvWriter) Write(rows []SpanRow) error {
	for _, row := range rows {
		record := []string{row.Document, strconv.FormatInt(row.Page, 10), row.Text, row.Category, row.Substitute}
		if err := w.writer.Write(record); err != nil {
			return err
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

func (w *csvWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type jsonReader struct {
	file    *os.File
	decoder *json.Decoder
}

func (r *jsonReader) Read(n int) ([]SpanRow, error) {
	var rows []SpanRow
	for len(rows) < n {
		var row SpanRow
		err := r.decoder.Decode(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("invalid JSON span: %w", err)
		}
		row.Substitute = ""
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *jsonReader) Close() error { return r.file.Close() }

type jsonWriter struct {
	file    *os.File
	encoder *json.Encoder
}

func (w *jsonWriter) Write(rows []SpanRow) error {
	for i := range rows {
		if err := w.encoder.Encode(&rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *jsonWriter) Close() error { return w.file.Close() }

type parquetReader struct {
	file   *os.File
	reader *parquet.GenericReader[SpanRow]
}

func (r *parquetReader) Read(n int) ([]SpanRow, error) {
	rows := make([]SpanRow, n)
	read, err := r.reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return rows[:read], fmt.Errorf("failed to read Parquet rows: %w", err)
	}
	rows = rows[:read]
	for i := range rows {
		rows[i].Substitute = ""
	}
	return rows, nil
}

func (r *parquetReader) Close() error {
	r.reader.Close()
	return r.file.Close()
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[SpanRow]
}

func (w *parquetWriter) Write(rows []SpanRow) error {
	_, err := w.writer.Write(rows)
	return err
}

func (w *parquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
