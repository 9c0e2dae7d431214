package hpi

import "fmt"

// SourceNotFoundError indicates the CSV source file does not exist
type SourceNotFoundError struct {
	Path string
}

func (e SourceNotFoundError) Error() string {
	return fmt.Sprintf("series source not found: %s", e.Path)
}

// SchemaError indicates the CSV exists but no usable series could be
// extracted from it (missing columns, unparsable content, no rows)
type SchemaError struct {
	Reason string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("series schema invalid: %s", e.Reason)
}
