package redshift

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/lib/pq"
)

// EpochMillisToTimestamp returns the SQL expression converting a BIGINT
// column holding milliseconds since the Unix epoch into a TIMESTAMP. Integer
// division drops the sub-second part.
func EpochMillisToTimestamp(column string) string {
	return fmt.Sprintf("TIMESTAMP 'epoch' + %s/1000 * INTERVAL '1 second'", column)
}

var templateFuncMap = template.FuncMap{
	"literal":        pq.QuoteLiteral,
	"ident":          pq.QuoteIdentifier,
	"epochTimestamp": EpochMillisToTimestamp,
}

// NewStatementTemplate parses a SQL statement template. Templates use {| |}
// delimiters so that braces inside SQL are left alone, and every value that
// is not a fixed identifier must go through literal or ident.
func NewStatementTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Delims("{|", "|}").Funcs(sprig.TxtFuncMap()).Funcs(templateFuncMap).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("error parsing statement: %v", err)
	}
	return tmpl, nil
}

// MustStatementTemplate is like NewStatementTemplate but panics on error. It
// is meant for package level templates.
func MustStatementTemplate(name, text string) *template.Template {
	return template.Must(NewStatementTemplate(name, text))
}

// Render executes tmpl with data.
func Render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error executing template %s: %v", tmpl.Name(), err)
	}
	return buf.String(), nil
}
