// Package transform derives the star schema tables from the staging tables.
package transform

import (
	"text/template"

	"github.com/sparkify/dwh/pkg/redshift"
	"github.com/sparkify/dwh/pkg/schema"
)

// NextSongPage is the page value of events that represent a song play.
const NextSongPage = "NextSong"

// Derivation is one INSERT ... SELECT populating Table from staging data.
type Derivation struct {
	Table string
	SQL   string
}

type derivationData struct {
	Target        string
	StagingEvents string
	StagingSongs  string
	Page          string
}

var songplaysTemplate = redshift.MustStatementTemplate("songplays", `INSERT INTO {| .Target |} (
    start_time,
    user_id,
    level,
    song_id,
    artist_id,
    session_id,
    location,
    user_agent
)
SELECT DISTINCT
    {| epochTimestamp "ts" |} AS start_time,
    userid AS user_id,
    level,
    song_id,
    artist_id,
    sessionid AS session_id,
    location,
    userAgent AS user_agent
FROM {| .StagingEvents |}
JOIN {| .StagingSongs |}
ON {| .StagingEvents |}.song = {| .StagingSongs |}.title
AND {| .StagingEvents |}.artist = {| .StagingSongs |}.artist_name
AND {| .StagingEvents |}.length = {| .StagingSongs |}.duration
WHERE {| .StagingEvents |}.page = {| literal .Page |};`)

var usersTemplate = redshift.MustStatementTemplate("users", `INSERT INTO {| .Target |} (
    user_id,
    first_name,
    last_name,
    gender,
    level
)
SELECT DISTINCT
    userid AS user_id,
    firstName AS first_name,
    lastName AS last_name,
    gender,
    level
FROM {| .StagingEvents |}
WHERE userid IS NOT NULL;`)

var songsTemplate = redshift.MustStatementTemplate("songs", `INSERT INTO {| .Target |} (
    song_id,
    title,
    artist_id,
    year,
    duration
)
SELECT DISTINCT
    song_id,
    title,
    artist_id,
    year,
    duration
FROM {| .StagingSongs |};`)

var artistsTemplate = redshift.MustStatementTemplate("artists", `INSERT INTO {| .Target |} (
    artist_id,
    name,
    location,
    latitude,
    longitude
)
SELECT DISTINCT
    artist_id,
    artist_name AS name,
    artist_location AS location,
    artist_latitude AS latitude,
    artist_longitude AS longitude
FROM {| .StagingSongs |};`)

var timeTemplate = redshift.MustStatementTemplate("time", `INSERT INTO {| .Target |} (
    start_time,
    hour,
    day,
    week,
    month,
    year,
    weekday
)
SELECT DISTINCT
    start_time,
    EXTRACT(hour FROM start_time) AS hour,
    EXTRACT(day FROM start_time) AS day,
    EXTRACT(week FROM start_time) AS week,
    EXTRACT(month FROM start_time) AS month,
    EXTRACT(year FROM start_time) AS year,
    EXTRACT(dow FROM start_time) AS weekday
FROM (
    SELECT DISTINCT {| epochTimestamp "ts" |} AS start_time
    FROM {| .StagingEvents |}
);`)

var derivationTemplates = []struct {
	table string
	tmpl  *template.Template
}{
	{schema.Songplays, songplaysTemplate},
	{schema.Users, usersTemplate},
	{schema.Songs, songsTemplate},
	{schema.Artists, artistsTemplate},
	{schema.Time, timeTemplate},
}

// Derivations returns the five derivations in the order they run: songplays,
// users, songs, artists, time. Dimension rows are deduplicated on the full
// selected row, so two rows sharing a key but differing elsewhere both land.
func Derivations() ([]Derivation, error) {
	derivations := make([]Derivation, 0, len(derivationTemplates))
	for _, d := range derivationTemplates {
		sql, err := redshift.Render(d.tmpl, derivationData{
			Target:        d.table,
			StagingEvents: schema.StagingEvents,
			StagingSongs:  schema.StagingSongs,
			Page:          NextSongPage,
		})
		if err != nil {
			return nil, err
		}
		derivations = append(derivations, Derivation{Table: d.table, SQL: sql})
	}
	return derivations, nil
}
