// Package schema describes the tables and columns the analytics agent may
// reference when generating SQL.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	ErrDescriptorNotFound = errors.New("schema descriptor not found")
	ErrInvalidDescriptor  = errors.New("invalid schema descriptor")
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Hint string `json:"hint,omitempty"`
}

type Table struct {
	Name    string
	Columns []Column
}

// Descriptor is an ordered list of tables. The JSON form is an object keyed by
// table name whose key order is kept on both decode and encode.
type Descriptor struct {
	Tables []Table
}

func (d Descriptor) Empty() bool {
	return len(d.Tables) == 0
}

func (d Descriptor) Table(name string) (Table, bool) {
	for _, table := range d.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

func (d Descriptor) Validate() error {
	tables := make(map[string]struct{}, len(d.Tables))
	for _, table := range d.Tables {
		if table.Name == "" {
			return fmt.Errorf("%w: table name is required", ErrInvalidDescriptor)
		}
		if _, dup := tables[table.Name]; dup {
			return fmt.Errorf("%w: duplicate table %q", ErrInvalidDescriptor, table.Name)
		}
		tables[table.Name] = struct{}{}

		columns := make(map[string]struct{}, len(table.Columns))
		for _, column := range table.Columns {
			if column.Name == "" {
				return fmt.Errorf("%w: table %q has a column without a name", ErrInvalidDescriptor, table.Name)
			}
			if _, dup := columns[column.Name]; dup {
				return fmt.Errorf("%w: duplicate column %q in table %q", ErrInvalidDescriptor, column.Name, table.Name)
			}
			columns[column.Name] = struct{}{}
		}
	}
	return nil
}

// ApplyHints sets hints keyed by "table.column" on columns that have none.
func (d Descriptor) ApplyHints(hints map[string]string) Descriptor {
	out := Descriptor{Tables: make([]Table, 0, len(d.Tables))}
	for _, table := range d.Tables {
		cols := make([]Column, len(table.Columns))
		copy(cols, table.Columns)
		for i := range cols {
			if cols[i].Hint != "" {
				continue
			}
			if hint, ok := hints[table.Name+"."+cols[i].Name]; ok {
				cols[i].Hint = hint
			}
		}
		out.Tables = append(out.Tables, Table{Name: table.Name, Columns: cols})
	}
	return out
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, table := range d.Tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(table.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		columns := table.Columns
		if columns == nil {
			columns = []Column{}
		}
		value, err := json.Marshal(columns)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected object of tables", ErrInvalidDescriptor)
	}

	tables := make([]Table, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: table name must be a string", ErrInvalidDescriptor)
		}
		var columns []Column
		if err := dec.Decode(&columns); err != nil {
			return fmt.Errorf("%w: table %q: %v", ErrInvalidDescriptor, name, err)
		}
		tables = append(tables, Table{Name: name, Columns: columns})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	d.Tables = tables
	return nil
}

func Decode(r io.Reader) (Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Descriptor{}, err
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return Descriptor{}, err
	}
	if err := desc.Validate(); err != nil {
		return Descriptor{}, err
	}
	return desc, nil
}

// LoadFile reads a JSON descriptor. A missing file is ErrDescriptorNotFound.
func LoadFile(path string) (Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrDescriptorNotFound, path)
		}
		return Descriptor{}, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()

	desc, err := Decode(f)
	if err != nil {
		return Descriptor{}, fmt.Errorf("decode schema %s: %w", path, err)
	}
	return desc, nil
}

func WriteFile(path string, desc Descriptor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create schema dir: %w", err)
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write schema %s: %w", path, err)
	}
	return nil
}
