// Package schema describes the warehouse tables and renders their DDL.
package schema

import (
	"fmt"
	"strings"
)

const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Songplays     = "songplays"
	Users         = "users"
	Songs         = "songs"
	Artists       = "artists"
	Time          = "time"
)

// Redshift distribution styles.
const (
	DistStyleAuto = ""
	DistStyleKey  = "KEY"
	DistStyleAll  = "ALL"
)

// Column types used by the warehouse tables.
const (
	TypeVarchar   = "VARCHAR"
	TypeInteger   = "INTEGER"
	TypeBigint    = "BIGINT"
	TypeNumeric   = "NUMERIC"
	TypeTimestamp = "TIMESTAMP"
)

type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	SortKey    bool
	DistKey    bool
	// Identity makes the column an auto-incrementing IDENTITY(0,1) column.
	Identity bool
}

type Table struct {
	Name      string
	Columns   []Column
	DistStyle string
	// IfNotExists is set for tables that are reused across runs.
	IfNotExists bool
}

// Key returns the primary key column name, or "" if the table has none.
func (t Table) Key() string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

// ColumnNames returns the names of the table's columns in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (c Column) definition() string {
	parts := []string{c.Name, c.Type}
	if c.Identity {
		parts = append(parts, "IDENTITY(0,1)")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.SortKey {
		parts = append(parts, "SORTKEY")
	}
	if c.DistKey {
		parts = append(parts, "DISTKEY")
	}
	return strings.Join(parts, " ")
}

// CreateTableSQL returns the CREATE TABLE statement for t.
func CreateTableSQL(t Table) string {
	ifNotExists := ""
	if t.IfNotExists {
		ifNotExists = "IF NOT EXISTS "
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = "    " + c.definition()
	}
	distStyle := ""
	if t.DistStyle != DistStyleAuto {
		distStyle = " DISTSTYLE " + t.DistStyle
	}
	return fmt.Sprintf("CREATE TABLE %s%s (\n%s\n)%s;", ifNotExists, t.Name, strings.Join(cols, ",\n"), distStyle)
}

// DropTableSQL returns a DROP TABLE IF EXISTS statement for name.
func DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", name)
}

func varchar(name string) Column { return Column{Name: name, Type: TypeVarchar} }
func integer(name string) Column { return Column{Name: name, Type: TypeInteger} }
func numeric(name string) Column { return Column{Name: name, Type: TypeNumeric} }

// Tables returns the seven warehouse tables in the order they are dropped
// and created.
func Tables() []Table {
	return []Table{
		{
			Name:        StagingEvents,
			IfNotExists: true,
			Columns: []Column{
				varchar("artist"),
				varchar("auth"),
				varchar("firstName"),
				varchar("gender"),
				integer("itemInSession"),
				varchar("lastName"),
				numeric("length"),
				varchar("level"),
				varchar("location"),
				varchar("method"),
				varchar("page"),
				numeric("registration"),
				integer("sessionid"),
				varchar("song"),
				integer("status"),
				{Name: "ts", Type: TypeBigint},
				varchar("userAgent"),
				integer("userid"),
			},
		},
		{
			Name:        StagingSongs,
			IfNotExists: true,
			Columns: []Column{
				varchar("song_id"),
				varchar("title"),
				integer("num_songs"),
				varchar("artist_id"),
				numeric("artist_latitude"),
				numeric("artist_longitude"),
				varchar("artist_location"),
				varchar("artist_name"),
				numeric("duration"),
				integer("year"),
			},
		},
		{
			Name:      Songplays,
			DistStyle: DistStyleKey,
			Columns: []Column{
				{Name: "songplay_id", Type: TypeInteger, Identity: true, PrimaryKey: true},
				{Name: "start_time", Type: TypeTimestamp, NotNull: true},
				{Name: "user_id", Type: TypeVarchar, NotNull: true, DistKey: true},
				varchar("level"),
				varchar("song_id"),
				varchar("artist_id"),
				integer("session_id"),
				varchar("location"),
				varchar("user_agent"),
			},
		},
		{
			Name:      Users,
			DistStyle: DistStyleAll,
			Columns: []Column{
				{Name: "user_id", Type: TypeInteger, PrimaryKey: true, SortKey: true},
				varchar("first_name"),
				varchar("last_name"),
				varchar("gender"),
				varchar("level"),
			},
		},
		{
			Name:      Songs,
			DistStyle: DistStyleKey,
			Columns: []Column{
				{Name: "song_id", Type: TypeVarchar, PrimaryKey: true, SortKey: true},
				varchar("title"),
				{Name: "artist_id", Type: TypeVarchar, DistKey: true},
				integer("year"),
				numeric("duration"),
			},
		},
		{
			Name:      Artists,
			DistStyle: DistStyleAll,
			Columns: []Column{
				{Name: "artist_id", Type: TypeVarchar, PrimaryKey: true, SortKey: true},
				varchar("name"),
				varchar("location"),
				numeric("latitude"),
				numeric("longitude"),
			},
		},
		{
			Name:      Time,
			DistStyle: DistStyleKey,
			Columns: []Column{
				{Name: "start_time", Type: TypeTimestamp, PrimaryKey: true},
				integer("hour"),
				integer("day"),
				integer("week"),
				integer("month"),
				{Name: "year", Type: TypeInteger, DistKey: true},
				integer("weekday"),
			},
		},
	}
}

// Lookup returns the table called name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
