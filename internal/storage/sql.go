package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS cycles (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    INTEGER NOT NULL REFERENCES sessions (id),
    started_at    DATETIME NOT NULL,
    elapsed_ms    INTEGER NOT NULL,
    shape         TEXT NOT NULL,
    frequency_hz  REAL NOT NULL,
    amplitude_vpp REAL NOT NULL,
    offset_v      REAL NOT NULL,
    duty_cycle    REAL NOT NULL,
    state         TEXT NOT NULL,
    error         TEXT,
    csv_path      TEXT,
    image_path    TEXT,
    stat_max      REAL,
    stat_min      REAL,
    stat_range    REAL,
    stat_mean     REAL,
    stat_std      REAL,
    stat_q1       REAL,
    stat_median   REAL,
    stat_q3       REAL
);

CREATE TABLE IF NOT EXISTS points (
    cycle_id INTEGER NOT NULL REFERENCES cycles (id),
    kind     TEXT NOT NULL,
    idx      INTEGER NOT NULL,
    x        REAL NOT NULL,
    y        REAL NOT NULL
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_cycles_session ON cycles (session_id);
CREATE INDEX IF NOT EXISTS idx_points_cycle ON points (cycle_id, kind, idx);`

	insertSessionSQL = `
INSERT INTO sessions (
                      started_at,
                      config)
VALUES (CURRENT_TIMESTAMP, ?)`

	insertCycleSQL = `
INSERT INTO cycles (session_id,
                    started_at,
                    elapsed_ms,
                    shape,
                    frequency_hz,
                    amplitude_vpp,
                    offset_v,
                    duty_cycle,
                    state,
                    error,
                    csv_path,
                    image_path,
                    stat_max,
                    stat_min,
                    stat_range,
                    stat_mean,
                    stat_std,
                    stat_q1,
                    stat_median,
                    stat_q3)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertPointsSQL = `
INSERT INTO points (cycle_id,
                    kind,
                    idx,
                    x,
                    y)
VALUES `

	selectSessionSQL = `
SELECT
    id,
    started_at,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    started_at,
    config
FROM sessions`

	cycleColumns = `
    id,
    session_id,
    started_at,
    elapsed_ms,
    shape,
    frequency_hz,
    amplitude_vpp,
    offset_v,
    duty_cycle,
    state,
    error,
    csv_path,
    image_path,
    stat_max,
    stat_min,
    stat_range,
    stat_mean,
    stat_std,
    stat_q1,
    stat_median,
    stat_q3`

	selectCycleSQL = `
SELECT` + cycleColumns + `
FROM cycles
WHERE
    id = ?`

	selectCyclesSQL = `
SELECT` + cycleColumns + `
FROM cycles
WHERE
    session_id = ?
ORDER BY id`

	selectPointsSQL = `
SELECT
    x,
    y
FROM points
WHERE
    cycle_id = ?
    AND kind = ?
ORDER BY idx`
)
