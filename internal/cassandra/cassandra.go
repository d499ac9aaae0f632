// Package cassandra provides a kv.Store on Apache Cassandra.
//
// Rows live in one table partitioned by logical table name and clustered by
// the encoded row.Key, so prefix scans are clustering-range reads. Each
// non-Null field is stored as a map entry holding its canonical JSON
// encoding. ConditionalWrite is a lightweight transaction:
//
//	UPDATE rows SET fields[?] = ?, ... WHERE tbl = ? AND key = ? IF present = true AND fields[?] = ?
//
// which Cassandra evaluates with Paxos, giving the per-row compare-and-swap
// the engine needs without any application-side locking.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
)

// Defaults applied by Open when Options leave a field zero.
const (
	DefaultKeyspace    = "wholesale"
	DefaultConnections = 2
	DefaultTimeout     = 30 * time.Second
)

var keyspacePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Options configures the cluster connection.
type Options struct {
	Hosts       []string
	Keyspace    string
	Consistency string // gocql level name, case-insensitive
	Connections int
	Timeout     time.Duration
	Username    string
	Password    string
}

// Store is a kv.Store backed by a gocql session.
type Store struct {
	session  *gocql.Session
	keyspace string
}

var _ kv.Store = (*Store)(nil)

// Open connects to the cluster and creates the rows table if needed.
// The keyspace must already exist.
func Open(opts Options) (*Store, error) {
	if len(opts.Hosts) == 0 {
		return nil, fmt.Errorf("cassandra: at least one host is required")
	}
	if opts.Keyspace == "" {
		opts.Keyspace = DefaultKeyspace
	}
	if !keyspacePattern.MatchString(opts.Keyspace) {
		return nil, fmt.Errorf("cassandra: invalid keyspace %q", opts.Keyspace)
	}
	if opts.Connections <= 0 {
		opts.Connections = DefaultConnections
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	consistency, err := ParseConsistency(opts.Consistency)
	if err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Keyspace = opts.Keyspace
	cluster.NumConns = opts.Connections
	cluster.Timeout = opts.Timeout
	cluster.Consistency = consistency
	cluster.SerialConsistency = gocql.LocalSerial
	if opts.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: opts.Username, Password: opts.Password}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra: create session: %w", err)
	}

	s := &Store{session: session, keyspace: opts.Keyspace}
	if err := s.createTable(); err != nil {
		session.Close()
		return nil, err
	}
	return s, nil
}

// ParseConsistency maps a config name to a gocql consistency level.
// The empty string selects quorum.
func ParseConsistency(name string) (gocql.Consistency, error) {
	switch strings.ToLower(name) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "any":
		return gocql.Any, nil
	case "one":
		return gocql.One, nil
	case "two":
		return gocql.Two, nil
	case "three":
		return gocql.Three, nil
	case "all":
		return gocql.All, nil
	case "local_quorum":
		return gocql.LocalQuorum, nil
	case "each_quorum":
		return gocql.EachQuorum, nil
	case "local_one":
		return gocql.LocalOne, nil
	default:
		return gocql.Any, fmt.Errorf("cassandra: unknown consistency %q", name)
	}
}

func (s *Store) createTable() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rows (
		tbl text,
		key text,
		fields map<text, text>,
		present boolean,
		PRIMARY KEY ((tbl), key)
	) WITH CLUSTERING ORDER BY (key ASC)`, s.keyspace)
	if err := s.session.Query(stmt).Exec(); err != nil {
		return fmt.Errorf("cassandra: create table: %w", err)
	}
	return nil
}

// Close releases the session.
func (s *Store) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

// ReadRow implements kv.Store.
func (s *Store) ReadRow(ctx context.Context, key row.Key) (row.Fields, error) {
	var encoded map[string]string
	err := s.session.Query(
		`SELECT fields FROM rows WHERE tbl = ? AND key = ?`,
		key.Table, key.String(),
	).WithContext(ctx).Scan(&encoded)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", key, kv.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read row %s: %w", key, err)
	}
	return decodeFields(encoded)
}

// ConditionalWrite implements kv.Store. Null is never stored as a map
// element: assigning Null deletes the element, and an expected Null is
// matched with "= null", which holds for an absent element. The present
// column keeps a Null guard from creating a missing row.
func (s *Store) ConditionalWrite(ctx context.Context, key row.Key, fields row.Fields, guard string, expected row.Value) (bool, error) {
	if len(fields) == 0 {
		return false, fmt.Errorf("conditional write %s: no fields to write", key)
	}
	assign, args, err := assignFields(fields)
	if err != nil {
		return false, err
	}
	args = append(args, key.Table, key.String(), guard)

	cond := "fields[?] = null"
	if !row.IsNull(expected) {
		want, err := row.MarshalValue(expected)
		if err != nil {
			return false, err
		}
		cond = "fields[?] = ?"
		args = append(args, string(want))
	}

	stmt := fmt.Sprintf(`UPDATE rows SET %s WHERE tbl = ? AND key = ? IF present = true AND %s`, assign, cond)
	previous := make(map[string]interface{})
	applied, err := s.session.Query(stmt, args...).WithContext(ctx).MapScanCAS(previous)
	if err != nil {
		return false, fmt.Errorf("conditional write %s: %w", key, err)
	}
	return applied, nil
}

// Write implements kv.Store.
func (s *Store) Write(ctx context.Context, key row.Key, fields row.Fields) error {
	if err := key.Validate(); err != nil {
		return err
	}
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	err = s.session.Query(
		`INSERT INTO rows (tbl, key, fields, present) VALUES (?, ?, ?, true)`,
		key.Table, key.String(), encoded,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("write row %s: %w", key, err)
	}
	return nil
}

// Scan implements kv.Store as a clustering-range read within the table's
// partition. Pages are fetched lazily, so callbacks may use the session.
func (s *Store) Scan(ctx context.Context, prefix row.Key, fn kv.ScanFunc) error {
	start, end := prefix.Range()
	iter := s.session.Query(
		`SELECT key, fields FROM rows WHERE tbl = ? AND key >= ? AND key < ?`,
		prefix.Table, start, end,
	).WithContext(ctx).Iter()

	var (
		k       string
		encoded map[string]string
	)
	for iter.Scan(&k, &encoded) {
		key, err := row.ParseKey(k)
		if err != nil {
			iter.Close()
			return err
		}
		fields, err := decodeFields(encoded)
		if err != nil {
			iter.Close()
			return fmt.Errorf("%s: %w", k, err)
		}
		if err := fn(key, fields); err != nil {
			iter.Close()
			if errors.Is(err, kv.ErrStopScan) {
				return nil
			}
			return err
		}
		encoded = nil
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	return nil
}

// encodeFields stores each value as its canonical JSON text.
// encodeFields drops Null fields; a missing element reads back as Null.
func encodeFields(f row.Fields) (map[string]string, error) {
	out := make(map[string]string, len(f))
	for name, v := range f {
		if row.IsNull(v) {
			continue
		}
		b, err := row.MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", name, err)
		}
		out[name] = string(b)
	}
	return out, nil
}

// assignFields renders one "fields[?] = ?" element assignment per field, in
// name order. A Null field binds nil, which deletes the element.
func assignFields(f row.Fields) (string, []interface{}, error) {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	args := make([]interface{}, 0, 2*len(names))
	for _, name := range names {
		parts = append(parts, "fields[?] = ?")
		v := f[name]
		if row.IsNull(v) {
			args = append(args, name, nil)
			continue
		}
		b, err := row.MarshalValue(v)
		if err != nil {
			return "", nil, fmt.Errorf("encode field %q: %w", name, err)
		}
		args = append(args, name, string(b))
	}
	return strings.Join(parts, ", "), args, nil
}

func decodeFields(m map[string]string) (row.Fields, error) {
	out := make(row.Fields, len(m))
	for name, s := range m {
		v, err := row.UnmarshalValue([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("decode field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
