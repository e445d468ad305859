// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passpoll.
//
// go-passpoll is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintMessage prints a status line.
func (p *Printer) PrintMessage(msg string) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(p.writer, msg)
	return err
}

// PrintFields prints ordered key/value pairs.
func (p *Printer) PrintFields(keys []string, values map[string]string) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(values)
	}
	for _, k := range keys {
		if _, err := fmt.Fprintf(p.writer, "%s: %s\n", k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) printJSON(v any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// redactURI hides the password of a connection string.
func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
