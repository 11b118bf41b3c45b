package redshift

import (
	"fmt"
	"strings"
)

// JSONAuto lets COPY map JSON object keys to column names.
const JSONAuto = "auto"

var copyJSONTemplate = MustStatementTemplate("copy-json", `COPY {| .Table |}
FROM {| literal .Source |}
CREDENTIALS {| printf "aws_iam_role=%s" .RoleARN | literal |}
JSON {| literal .JSONFormat |}
REGION {| literal .Region |}{| if .Options |}
{| join " " .Options |}{| end |};`)

// CopyJSON describes a bulk load of JSON documents from S3.
type CopyJSON struct {
	Table string
	// Source is an s3:// URI of an object or prefix.
	Source  string
	RoleARN string
	// JSONFormat is JSONAuto or the s3:// URI of a JSONPaths document.
	JSONFormat string
	Region     string
	// Options are appended verbatim, e.g. "COMPUPDATE OFF".
	Options []string
}

func (c CopyJSON) validate() error {
	var missing []string
	if c.Table == "" {
		missing = append(missing, "table")
	}
	if !strings.HasPrefix(c.Source, "s3://") {
		missing = append(missing, "s3 source")
	}
	if c.RoleARN == "" {
		missing = append(missing, "role arn")
	}
	if c.JSONFormat == "" {
		missing = append(missing, "json format")
	}
	if c.Region == "" {
		missing = append(missing, "region")
	}
	if len(missing) != 0 {
		return fmt.Errorf("invalid COPY for %q: missing or invalid %s", c.Table, strings.Join(missing, ", "))
	}
	return nil
}

// Statement renders the COPY statement.
func (c CopyJSON) Statement() (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	return Render(copyJSONTemplate, c)
}
