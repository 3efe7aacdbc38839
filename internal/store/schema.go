package store

// schemaVersion is the target schema version for this build.
const schemaVersion = 1

// Form columns, in the order returned by the forms' TextFields methods.
var (
	suspectFormColumns = []string{
		"gender", "date_of_birth", "address_notes", "phone_number", "nationality",
		"occupation", "role", "appearance", "vehicle_description", "vehicle_plate_number",
		"evidence", "arrested_status", "arrest_date", "crimes_person_charged_with",
		"willing_pv_names", "suspect_in_police_custody", "suspect_current_location",
		"suspect_last_known_location", "suspect_last_known_location_date",
	}
	victimFormColumns = []string{
		"gender", "date_of_birth", "address_notes", "phone_number", "nationality",
		"occupation", "appearance", "vehicle_description", "vehicle_plate_number",
		"destination", "job_offered",
	}
)

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS urls (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	url             TEXT NOT NULL UNIQUE,
	domain_name     TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL DEFAULT '',
	accessible      INTEGER NOT NULL DEFAULT -1,
	actual_incident INTEGER NOT NULL DEFAULT -1,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS incidents (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url_id     INTEGER NOT NULL REFERENCES urls(id),
	text       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_incidents_url ON incidents(url_id);

CREATE TABLE IF NOT EXISTS suspects (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url_id     INTEGER NOT NULL REFERENCES urls(id),
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(url_id, name)
);

CREATE TABLE IF NOT EXISTS victims (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url_id     INTEGER NOT NULL REFERENCES urls(id),
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(url_id, name)
);

CREATE TABLE IF NOT EXISTS suspect_forms (
	id                               INTEGER PRIMARY KEY AUTOINCREMENT,
	url_id                           INTEGER NOT NULL REFERENCES urls(id),
	suspect_id                       INTEGER NOT NULL UNIQUE REFERENCES suspects(id),
	name                             TEXT NOT NULL,
	gender                           TEXT,
	date_of_birth                    TEXT,
	age                              INTEGER,
	address_notes                    TEXT,
	phone_number                     TEXT,
	nationality                      TEXT,
	occupation                       TEXT,
	role                             TEXT,
	appearance                       TEXT,
	vehicle_description              TEXT,
	vehicle_plate_number             TEXT,
	evidence                         TEXT,
	arrested_status                  TEXT,
	arrest_date                      TEXT,
	crimes_person_charged_with       TEXT,
	willing_pv_names                 TEXT,
	suspect_in_police_custody        TEXT,
	suspect_current_location         TEXT,
	suspect_last_known_location      TEXT,
	suspect_last_known_location_date TEXT
);

CREATE TABLE IF NOT EXISTS victim_forms (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	url_id               INTEGER NOT NULL REFERENCES urls(id),
	victim_id            INTEGER NOT NULL UNIQUE REFERENCES victims(id),
	name                 TEXT NOT NULL,
	gender               TEXT,
	date_of_birth        TEXT,
	age                  INTEGER,
	address_notes        TEXT,
	phone_number         TEXT,
	nationality          TEXT,
	occupation           TEXT,
	appearance           TEXT,
	vehicle_description  TEXT,
	vehicle_plate_number TEXT,
	destination          TEXT,
	job_offered          TEXT
);
`
