// Package execlog records fleet runs in a MySQL table.
//
// A row is inserted when a run starts and updated with its outcome when it
// ends. The store is optional; callers treat every error as non-fatal.
package execlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/JonMunkholm/dbfleet/internal/core"
	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// Config locates the exec log database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// maxContentLen keeps content within the TEXT column.
const maxContentLen = 65535

const schemaSQL = `CREATE TABLE IF NOT EXISTS exec_log (
  id              BIGINT AUTO_INCREMENT PRIMARY KEY,
  run_id          CHAR(36)     NOT NULL,
  run_kind        VARCHAR(32)  NOT NULL,
  run_name        VARCHAR(255) NOT NULL,
  content         TEXT,
  host_ip         VARCHAR(64),
  started_at      DATETIME(3)  NOT NULL,
  result_count    INT,
  result_code     VARCHAR(16),
  result_msg      VARCHAR(1000),
  elapsed_seconds DECIMAL(12,3),
  KEY idx_exec_log_run (run_id)
)`

const insertSQL = `INSERT INTO exec_log (run_id, run_kind, run_name, content, host_ip, started_at) VALUES (?, ?, ?, ?, ?, ?)`

const updateSQL = `UPDATE exec_log SET result_count = ?, result_code = ?, result_msg = ?, elapsed_seconds = ? WHERE id = ?`

// Store implements core.ExecLog.
type Store struct {
	db     *sql.DB
	hostIP string
	now    func() time.Time
}

var _ core.ExecLog = (*Store)(nil)

// Open connects to the exec log database and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	mc := mysqldrv.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if cfg.Timeout > 0 {
		mc.Timeout = cfg.Timeout
	}

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open exec log: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping exec log: %w", err)
	}
	return New(db, HostIP()), nil
}

// New wraps an open database handle.
func New(db *sql.DB, hostIP string) *Store {
	return &Store{db: db, hostIP: hostIP, now: time.Now}
}

// EnsureSchema creates the exec_log table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create exec_log: %w", err)
	}
	return nil
}

// Begin inserts a started run and returns its row id.
func (s *Store) Begin(ctx context.Context, e core.ExecEntry) (int64, error) {
	res, err := s.db.ExecContext(ctx, insertSQL,
		e.RunID,
		string(e.Kind),
		dialect.Truncate(e.Name, 255),
		dialect.Truncate(e.Content, maxContentLen),
		s.hostIP,
		s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert exec_log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("exec_log id: %w", err)
	}
	return id, nil
}

// End records the outcome of the run logged under id.
func (s *Store) End(ctx context.Context, id int64, o core.ExecOutcome) error {
	_, err := s.db.ExecContext(ctx, updateSQL,
		o.Count,
		o.Code,
		dialect.Truncate(o.Message, 1000),
		fmt.Sprintf("%.3f", o.Elapsed.Seconds()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update exec_log %d: %w", id, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// HostIP returns the first non-loopback IPv4 address of this machine, or
// "127.0.0.1" when none is found.
func HostIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		slog.Debug("list interface addresses", "error", err)
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
