package planner

import (
	"fmt"
	"strings"

	"github.com/schemafleet/schemafleet/internal/model"
)

// quote wraps a SQL identifier in backticks, escaping any embedded backticks.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// quoteLiteral renders a string literal in single quotes.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// columnDefinition renders the full column clause used in CREATE TABLE,
// ADD COLUMN, and MODIFY COLUMN: type, nullability, default, auto-increment,
// and comment.
func columnDefinition(c model.ColumnSpec) string {
	var b strings.Builder
	b.WriteString(quote(c.Name))
	b.WriteString(" ")
	b.WriteString(columnType(c))
	if c.AllowNull {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if c.DefaultValue != nil {
		b.WriteString(" DEFAULT ")
		if model.IsSymbolicDefault(*c.DefaultValue) {
			// Symbolic tokens (CURRENT_TIMESTAMP, the ON UPDATE variant,
			// NULL) render unquoted.
			b.WriteString(strings.ToUpper(*c.DefaultValue))
		} else {
			b.WriteString(quoteLiteral(*c.DefaultValue))
		}
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if c.Comment != "" {
		b.WriteString(" COMMENT ")
		b.WriteString(quoteLiteral(c.Comment))
	}
	return b.String()
}

// indexClause renders the index body used both inside CREATE TABLE and in
// ADD INDEX statements.
func indexClause(idx model.IndexSpec) string {
	fields := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		fields[i] = quote(f)
	}
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("%s %s (%s)", kind, quote(idx.Name), strings.Join(fields, ","))
}

// renderCreateTable builds the single CREATE TABLE statement for a missing
// physical table: canonical column order, primary key clause from columns
// flagged primary, every declared index appended.
func renderCreateTable(d *model.Declaration, physical string) string {
	lines := make([]string, 0, len(d.Columns)+len(d.Indexes)+1)
	for _, c := range d.Columns {
		lines = append(lines, "\t"+columnDefinition(c))
	}

	if pk := d.PrimaryKeyColumns(); len(pk) > 0 {
		quoted := make([]string, len(pk))
		for i, c := range pk {
			quoted[i] = quote(c)
		}
		lines = append(lines, fmt.Sprintf("\tPRIMARY KEY (%s)", strings.Join(quoted, ",")))
	}

	for _, idx := range d.Indexes {
		lines = append(lines, "\t"+indexClause(idx))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		quote(physical), strings.Join(lines, ",\n"))
}

// renderAddColumn positions the new column AFTER its declared predecessor,
// or FIRST when it is the first declared column.
func renderAddColumn(physical string, c model.ColumnSpec, after string) string {
	pos := " FIRST"
	if after != "" {
		pos = " AFTER " + quote(after)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s%s", quote(physical), columnDefinition(c), pos)
}

func renderModifyColumn(physical string, c model.ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", quote(physical), columnDefinition(c))
}

func renderAddIndex(physical string, idx model.IndexSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", quote(physical), indexClause(idx))
}

func renderDropIndex(physical, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", quote(physical), quote(name))
}

func renderDropTable(physical string) string {
	return fmt.Sprintf("DROP TABLE %s", quote(physical))
}
