package schema

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteMarkdown renders the human readable schema document.
func WriteMarkdown(w io.Writer, desc Descriptor) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "# Olist DB Schema\n\n")
	for _, table := range desc.Tables {
		fmt.Fprintf(bw, "## %s\n\n", table.Name)
		for _, column := range table.Columns {
			hint := ""
			if column.Hint != "" {
				hint = " – " + column.Hint
			}
			fmt.Fprintf(bw, "- `%s` (%s)%s\n", column.Name, column.Type, hint)
		}
		fmt.Fprint(bw, "\n")
	}
	return bw.Flush()
}

func WriteMarkdownFile(path string, desc Descriptor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create markdown dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteMarkdown(f, desc); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
