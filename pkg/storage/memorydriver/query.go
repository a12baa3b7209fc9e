package memorydriver

import (
	"fmt"
	"regexp"
	"strings"
)

// statementKind names the small SQL subset the driver understands.
type statementKind string

const (
	kindCreate statementKind = "create"
	kindInsert statementKind = "insert"
	kindSelect statementKind = "select"
	kindUpdate statementKind = "update"
	kindDelete statementKind = "delete"
)

var (
	createPattern = regexp.MustCompile(`(?is)^create\s+table\s+(?:if\s+not\s+exists\s+)?(\w+)\s*\((.*)\)$`)
	insertPattern = regexp.MustCompile(`(?is)^insert\s+into\s+(\w+)\s*\(([^)]*)\)\s*values\s*\(([^)]*)\)$`)
	selectPattern = regexp.MustCompile(`(?is)^select\s+(.+?)\s+from\s+(\w+)(?:\s+where\s+(.+))?$`)
	updatePattern = regexp.MustCompile(`(?is)^update\s+(\w+)\s+set\s+(.+?)\s+where\s+(.+)$`)
	deletePattern = regexp.MustCompile(`(?is)^delete\s+from\s+(\w+)\s+where\s+(.+)$`)
	andPattern    = regexp.MustCompile(`(?i)\s+and\s+`)
)

// statement is a parsed query. Placeholders are positional: assignments first, then conditions.
type statement struct {
	kind       statementKind
	table      string
	columns    []string
	schema     []column
	conditions []string
}

// numInput counts the placeholders the statement consumes.
func (s statement) numInput() int {
	switch s.kind {
	case kindInsert, kindUpdate:
		return len(s.columns) + len(s.conditions)
	case kindSelect, kindDelete:
		return len(s.conditions)
	default:
		return 0
	}
}

// parseStatement recognises CREATE TABLE, INSERT, SELECT, UPDATE and DELETE with equality filters.
func parseStatement(query string) (statement, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(query), ";")
	switch {
	case createPattern.MatchString(trimmed):
		m := createPattern.FindStringSubmatch(trimmed)
		schema, err := parseSchema(m[2])
		if err != nil {
			return statement{}, err
		}
		return statement{kind: kindCreate, table: strings.ToLower(m[1]), schema: schema}, nil
	case insertPattern.MatchString(trimmed):
		m := insertPattern.FindStringSubmatch(trimmed)
		columns := splitList(m[2])
		if placeholders := splitList(m[3]); len(placeholders) != len(columns) {
			return statement{}, fmt.Errorf("insert into %s: %d columns but %d values", m[1], len(columns), len(placeholders))
		}
		return statement{kind: kindInsert, table: strings.ToLower(m[1]), columns: columns}, nil
	case selectPattern.MatchString(trimmed):
		m := selectPattern.FindStringSubmatch(trimmed)
		conditions, err := parseConditions(m[3])
		if err != nil {
			return statement{}, err
		}
		return statement{kind: kindSelect, table: strings.ToLower(m[2]), columns: splitList(m[1]), conditions: conditions}, nil
	case updatePattern.MatchString(trimmed):
		m := updatePattern.FindStringSubmatch(trimmed)
		assignments, err := parseAssignments(m[2], ",")
		if err != nil {
			return statement{}, err
		}
		conditions, err := parseConditions(m[3])
		if err != nil {
			return statement{}, err
		}
		return statement{kind: kindUpdate, table: strings.ToLower(m[1]), columns: assignments, conditions: conditions}, nil
	case deletePattern.MatchString(trimmed):
		m := deletePattern.FindStringSubmatch(trimmed)
		conditions, err := parseConditions(m[2])
		if err != nil {
			return statement{}, err
		}
		return statement{kind: kindDelete, table: strings.ToLower(m[1]), conditions: conditions}, nil
	default:
		return statement{}, fmt.Errorf("unsupported query: %s", query)
	}
}

// parseSchema reads "name TYPE ..." column definitions; anything after the type is ignored.
func parseSchema(body string) ([]column, error) {
	var columns []column
	for _, def := range strings.Split(body, ",") {
		fields := strings.Fields(def)
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid column definition %q", strings.TrimSpace(def))
		}
		kind, err := kindFromSQL(fields[1])
		if err != nil {
			return nil, err
		}
		columns = append(columns, column{Name: strings.ToLower(fields[0]), Kind: kind})
	}
	return columns, nil
}

func kindFromSQL(sqlType string) (string, error) {
	switch strings.ToUpper(sqlType) {
	case "INTEGER", "INT", "BIGINT":
		return kindInteger, nil
	case "REAL", "FLOAT", "DOUBLE":
		return kindReal, nil
	case "TEXT", "VARCHAR":
		return kindText, nil
	case "TIMESTAMP", "DATE", "DATETIME":
		return kindTime, nil
	default:
		return "", fmt.Errorf("unsupported column type %s", sqlType)
	}
}

func parseConditions(where string) ([]string, error) {
	if strings.TrimSpace(where) == "" {
		return nil, nil
	}
	return parseAssignments(where, "and")
}

// parseAssignments accepts "col = ?" terms separated by commas or AND.
func parseAssignments(body, separator string) ([]string, error) {
	var parts []string
	if separator == "and" {
		parts = andPattern.Split(body, -1)
	} else {
		parts = strings.Split(body, separator)
	}
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		pieces := strings.SplitN(part, "=", 2)
		if len(pieces) != 2 || strings.TrimSpace(pieces[1]) != "?" {
			return nil, fmt.Errorf("unsupported term %q: only col = ? is allowed", strings.TrimSpace(part))
		}
		columns = append(columns, strings.ToLower(strings.TrimSpace(pieces[0])))
	}
	return columns, nil
}

func splitList(list string) []string {
	raw := strings.Split(list, ",")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
