package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	meowstatus "github.com/meowhuan/meowstatus"
)

// OnlineStaleAfter 心跳超过该窗口未刷新时，读取端把设备视为离线。
const OnlineStaleAfter = 5 * time.Minute

const schema = `
CREATE TABLE IF NOT EXISTS device_status (
    device_id TEXT PRIMARY KEY,
    device_name TEXT NOT NULL,
    online INTEGER NOT NULL,
    last_seen INTEGER NOT NULL,
    idle_seconds INTEGER,
    manual_offline INTEGER NOT NULL DEFAULT 0,
    music_playing INTEGER NOT NULL DEFAULT 0,
    music_title TEXT,
    music_artist TEXT,
    music_source TEXT,
    music_updated_at INTEGER
);
CREATE TABLE IF NOT EXISTS status_control (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    global_manual_offline INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS schedule_items (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    time TEXT NOT NULL,
    note TEXT,
    location TEXT,
    tag TEXT,
    sort_order INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS visitor_visits (
    visitor_id TEXT NOT NULL,
    visit_date TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (visitor_id, visit_date)
);
CREATE TABLE IF NOT EXISTS blog_posts (
    slug TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    date TEXT NOT NULL,
    tag TEXT,
    excerpt TEXT NOT NULL,
    content_json TEXT NOT NULL,
    sort_order INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Store is the sqlite-backed state of the status backend.
type Store struct {
	db *sql.DB
}

// Open opens (and initializes) the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database failed")
	}
	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init sqlite schema failed")
	}
	store := &Store{db: db}
	if err := store.ensureControlRow(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "execute sqlite pragma %s failed", stmt)
		}
	}
	db.SetMaxOpenConns(1)
	return nil
}

func (s *Store) ensureControlRow() error {
	_, err := s.db.Exec(
		`INSERT INTO status_control (id, global_manual_offline, updated_at)
         VALUES (1, 0, ?)
         ON CONFLICT(id) DO NOTHING`,
		time.Now().Unix(),
	)
	return errors.Wrap(err, "ensure status control row failed")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordHeartbeat upserts a device row from one heartbeat. The per-device
// manual_offline flag survives heartbeats. While global manual offline is on,
// heartbeats are accepted but not stored.
func (s *Store) RecordHeartbeat(ctx context.Context, hb meowstatus.Heartbeat, now time.Time) error {
	globalOffline, _, err := s.GlobalManualOffline(ctx)
	if err != nil {
		return err
	}
	if globalOffline {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO device_status (
            device_id, device_name, online, last_seen, idle_seconds, manual_offline,
            music_playing, music_title, music_artist, music_source, music_updated_at
         )
         VALUES (
            ?1, ?2, ?3, ?4, ?5,
            COALESCE((SELECT manual_offline FROM device_status WHERE device_id = ?1), 0),
            ?6, ?7, ?8, ?9, ?10
         )
         ON CONFLICT(device_id) DO UPDATE SET
           device_name=excluded.device_name,
           online=excluded.online,
           last_seen=excluded.last_seen,
           idle_seconds=excluded.idle_seconds,
           music_playing=excluded.music_playing,
           music_title=excluded.music_title,
           music_artist=excluded.music_artist,
           music_source=excluded.music_source,
           music_updated_at=excluded.music_updated_at`,
		hb.DeviceID,
		hb.DeviceName,
		boolToInt(hb.Online),
		now.Unix(),
		hb.IdleSeconds,
		boolToInt(hb.MusicPlaying),
		nullString(hb.MusicTitle),
		nullString(hb.MusicArtist),
		nullString(hb.MusicSource),
		now.Unix(),
	)
	return errors.Wrap(err, "record heartbeat failed")
}

// DeviceStatuses returns every device with the staleness window and manual
// flags applied to the online field.
func (s *Store) DeviceStatuses(ctx context.Context, now time.Time) ([]meowstatus.DeviceStatusRecord, error) {
	globalOffline, _, err := s.GlobalManualOffline(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, device_name, online, last_seen, idle_seconds, manual_offline,
                music_playing, music_title, music_artist, music_source, music_updated_at
         FROM device_status
         ORDER BY device_id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query device status failed")
	}
	defer rows.Close()

	list := make([]meowstatus.DeviceStatusRecord, 0, 4)
	for rows.Next() {
		var (
			record        meowstatus.DeviceStatusRecord
			reported      int64
			manualOffline int64
			playing       int64
			idle          sql.NullInt64
			title         sql.NullString
			artist        sql.NullString
			source        sql.NullString
			musicUpdated  sql.NullInt64
		)
		if err := rows.Scan(
			&record.DeviceID, &record.DeviceName, &reported, &record.LastSeen, &idle,
			&manualOffline, &playing, &title, &artist, &source, &musicUpdated,
		); err != nil {
			return nil, errors.Wrap(err, "scan device status failed")
		}
		stale := now.Unix()-record.LastSeen > int64(OnlineStaleAfter/time.Second)
		record.ManualOffline = manualOffline == 1
		record.GlobalManualOffline = globalOffline
		record.Online = !globalOffline && !record.ManualOffline && reported == 1 && !stale
		record.IdleSeconds = idle.Int64
		record.MusicPlaying = playing == 1
		record.MusicTitle = title.String
		record.MusicArtist = artist.String
		record.MusicSource = source.String
		record.MusicUpdatedAt = musicUpdated.Int64
		list = append(list, record)
	}
	return list, errors.Wrap(rows.Err(), "iterate device status failed")
}

// DevicePatch is a partial device update from the admin surface. Nil fields
// keep their stored values.
type DevicePatch struct {
	DeviceID      string
	DeviceName    *string
	Online        *bool
	ManualOffline *bool
	MusicPlaying  *bool
	MusicTitle    *string
	MusicArtist   *string
	MusicSource   *string
}

// UpdateDeviceStatus applies a partial update. Setting Online also refreshes
// last_seen and clears idle; touching any music field refreshes its timestamp.
func (s *Store) UpdateDeviceStatus(ctx context.Context, patch DevicePatch, now time.Time) error {
	deviceID := strings.TrimSpace(patch.DeviceID)
	if deviceID == "" {
		return errors.New("device id is required")
	}

	var (
		name          sql.NullString
		reported      sql.NullInt64
		lastSeen      sql.NullInt64
		idle          sql.NullInt64
		manualOffline sql.NullInt64
		playing       sql.NullInt64
		title         sql.NullString
		artist        sql.NullString
		source        sql.NullString
		musicUpdated  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT device_name, online, last_seen, idle_seconds, manual_offline,
                music_playing, music_title, music_artist, music_source, music_updated_at
         FROM device_status WHERE device_id = ?1`, deviceID,
	).Scan(&name, &reported, &lastSeen, &idle, &manualOffline, &playing, &title, &artist, &source, &musicUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "load device for update failed")
	}

	finalName := deviceID
	if name.Valid && name.String != "" {
		finalName = name.String
	}
	if patch.DeviceName != nil && strings.TrimSpace(*patch.DeviceName) != "" {
		finalName = strings.TrimSpace(*patch.DeviceName)
	}
	finalOnline := reported.Int64 == 1
	finalLastSeen := lastSeen.Int64
	finalIdle := idle
	if patch.Online != nil {
		finalOnline = *patch.Online
		finalLastSeen = now.Unix()
		finalIdle = sql.NullInt64{}
	} else if finalLastSeen == 0 {
		finalLastSeen = now.Unix()
	}
	finalManual := manualOffline.Int64 == 1
	if patch.ManualOffline != nil {
		finalManual = *patch.ManualOffline
	}
	finalPlaying := playing.Int64 == 1
	if patch.MusicPlaying != nil {
		finalPlaying = *patch.MusicPlaying
	}
	finalTitle := title
	if patch.MusicTitle != nil {
		finalTitle = nullString(*patch.MusicTitle)
	}
	finalArtist := artist
	if patch.MusicArtist != nil {
		finalArtist = nullString(*patch.MusicArtist)
	}
	finalSource := source
	if patch.MusicSource != nil {
		finalSource = nullString(*patch.MusicSource)
	}
	finalMusicUpdated := musicUpdated
	if patch.MusicPlaying != nil || patch.MusicTitle != nil || patch.MusicArtist != nil || patch.MusicSource != nil {
		finalMusicUpdated = sql.NullInt64{Int64: now.Unix(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO device_status (
            device_id, device_name, online, last_seen, idle_seconds, manual_offline,
            music_playing, music_title, music_artist, music_source, music_updated_at
         )
         VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11)
         ON CONFLICT(device_id) DO UPDATE SET
           device_name = excluded.device_name,
           online = excluded.online,
           last_seen = excluded.last_seen,
           idle_seconds = excluded.idle_seconds,
           manual_offline = excluded.manual_offline,
           music_playing = excluded.music_playing,
           music_title = excluded.music_title,
           music_artist = excluded.music_artist,
           music_source = excluded.music_source,
           music_updated_at = excluded.music_updated_at`,
		deviceID, finalName, boolToInt(finalOnline), finalLastSeen, finalIdle,
		boolToInt(finalManual), boolToInt(finalPlaying), finalTitle, finalArtist,
		finalSource, finalMusicUpdated,
	)
	return errors.Wrap(err, "update device status failed")
}

// DeleteDevice removes one device row.
func (s *Store) DeleteDevice(ctx context.Context, deviceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM device_status WHERE device_id = ?1`, deviceID)
	return errors.Wrap(err, "delete device failed")
}

// GlobalManualOffline returns the global override flag and its update time.
func (s *Store) GlobalManualOffline(ctx context.Context) (bool, int64, error) {
	var enabled, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT global_manual_offline, updated_at FROM status_control WHERE id = 1`,
	).Scan(&enabled, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, errors.Wrap(err, "query status control failed")
	}
	return enabled == 1, updatedAt, nil
}

// SetGlobalManualOffline flips the global override.
func (s *Store) SetGlobalManualOffline(ctx context.Context, enabled bool, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_control (id, global_manual_offline, updated_at)
         VALUES (1, ?1, ?2)
         ON CONFLICT(id) DO UPDATE SET
           global_manual_offline = excluded.global_manual_offline,
           updated_at = excluded.updated_at`,
		boolToInt(enabled), now.Unix(),
	)
	return errors.Wrap(err, "set global manual offline failed")
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
