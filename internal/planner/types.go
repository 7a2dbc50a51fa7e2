package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/schemafleet/schemafleet/internal/model"
)

// columnType renders a declared ColumnSpec as the engine type string used in
// DDL and compared against information_schema COLUMN_TYPE.
func columnType(c model.ColumnSpec) string {
	var t string
	switch c.Type {
	case model.TypeVarchar, model.TypeChar:
		t = fmt.Sprintf("%s(%d)", strings.ToLower(c.Type), c.Length)
	case model.TypeDecimal:
		t = fmt.Sprintf("decimal(%d,%d)", c.Precision, c.Scale)
	default:
		t = strings.ToLower(c.Type)
	}
	if c.Unsigned {
		t += " unsigned"
	}
	return t
}

// intDisplayWidth strips the legacy display width MySQL 5.7 reports for
// integer types ("bigint(20) unsigned" -> "bigint unsigned"); MySQL 8 omits
// it, and it carries no semantics either way.
var intDisplayWidth = regexp.MustCompile(`^(tinyint|smallint|mediumint|int|integer|bigint)\(\d+\)`)

// normalizeObservedType canonicalizes an information_schema COLUMN_TYPE for
// comparison against columnType output.
func normalizeObservedType(columnType string) string {
	t := strings.ToLower(strings.TrimSpace(columnType))
	t = intDisplayWidth.ReplaceAllString(t, "$1")
	return strings.Join(strings.Fields(t), " ")
}

// effectiveDefault reduces a declared default value to its comparable form:
// nil for "no default", the upper-cased token for symbolic defaults, the raw
// literal otherwise. A declared NULL token compares equal to no default, as
// the engine reports both the same way.
func effectiveDefault(v *string) *string {
	if v == nil {
		return nil
	}
	if model.IsSymbolicDefault(*v) {
		up := strings.ToUpper(*v)
		if up == model.DefaultNull {
			return nil
		}
		return &up
	}
	return v
}

// ObservedDefault reconstructs the declared-form default of a live column:
// the engine reports CURRENT_TIMESTAMP in COLUMN_DEFAULT and the ON UPDATE
// trigger clause separately in EXTRA.
func ObservedDefault(c *model.ObservedColumn) *string {
	if c.Default == nil {
		return nil
	}
	d := *c.Default
	if strings.EqualFold(d, "NULL") {
		return nil
	}
	if strings.EqualFold(strings.TrimSuffix(d, "()"), model.DefaultCurrentTimestamp) {
		d = model.DefaultCurrentTimestamp
		if strings.Contains(strings.ToLower(c.Extra), "on update current_timestamp") {
			d = model.DefaultCurrentTimestampOnUpdate
		}
		return &d
	}
	return &d
}

// columnDiffers reports whether a live column deviates from its declared
// spec in any semantic attribute: type (including length, precision and
// unsignedness), nullability, default, or comment.
func columnDiffers(spec model.ColumnSpec, obs *model.ObservedColumn) bool {
	if columnType(spec) != normalizeObservedType(obs.ColumnType) {
		return true
	}
	if spec.AllowNull != obs.Nullable {
		return true
	}
	if spec.Comment != obs.Comment {
		return true
	}
	if spec.AutoIncrement != strings.Contains(strings.ToLower(obs.Extra), "auto_increment") {
		return true
	}
	want := effectiveDefault(spec.DefaultValue)
	have := ObservedDefault(obs)
	if (want == nil) != (have == nil) {
		return true
	}
	if want != nil && *want != *have {
		return true
	}
	return false
}

// indexDiffers reports whether a live index's field list or uniqueness
// deviates from the declared spec. Field order is significant.
func indexDiffers(spec model.IndexSpec, obs *model.ObservedIndex) bool {
	if spec.Unique != obs.Unique {
		return true
	}
	if len(spec.Fields) != len(obs.Columns) {
		return true
	}
	for i, f := range spec.Fields {
		if f != obs.Columns[i] {
			return true
		}
	}
	return false
}
