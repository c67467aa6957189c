package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/snmp"
)

// Walker enumerates a subtree. *snmp.Client satisfies it.
type Walker interface {
	Walk(ctx context.Context, root oid.OID) ([]snmp.Varbind, error)
}

// Capture describes one recorded walk.
type Capture struct {
	ID         int64
	Host       string
	Root       oid.OID
	Varbinds   int
	CapturedAt time.Time
}

// Record walks root on the agent and stores every varbind. Identifiers
// recorded earlier are overwritten.
func (s *Store) Record(ctx context.Context, w Walker, host string, root oid.OID) (*Capture, error) {
	vbs, err := w.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return s.Save(ctx, host, root, vbs)
}

// Save stores vbs as a single capture.
func (s *Store) Save(ctx context.Context, host string, root oid.OID, vbs []snmp.Varbind) (*Capture, error) {
	c := &Capture{Host: host, Root: root, CapturedAt: time.Now().UTC()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin capture: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO captures (host, root, varbinds, captured_at) VALUES (?, ?, 0, ?)`,
		host, root.String(), c.CapturedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert capture: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert capture: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO varbinds (oid, kind, value, capture_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare varbind insert: %w", err)
	}
	defer stmt.Close()

	for _, vb := range vbs {
		if vb.NotFound {
			continue
		}
		if _, err := stmt.ExecContext(ctx, vb.OID.String(), string(vb.Value.Kind), vb.Value.Text, c.ID); err != nil {
			return nil, fmt.Errorf("insert varbind %s: %w", vb.OID, err)
		}
		c.Varbinds++
	}

	if _, err := tx.ExecContext(ctx, `UPDATE captures SET varbinds = ? WHERE id = ?`, c.Varbinds, c.ID); err != nil {
		return nil, fmt.Errorf("update capture: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit capture: %w", err)
	}
	return c, nil
}

// Captures lists the recorded walks, oldest first.
func (s *Store) Captures(ctx context.Context) ([]Capture, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, host, root, varbinds, captured_at FROM captures ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var c Capture
		var root, at string
		if err := rows.Scan(&c.ID, &c.Host, &root, &c.Varbinds, &at); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		if c.Root, err = oid.Parse(root); err != nil {
			return nil, fmt.Errorf("capture %d: %w", c.ID, err)
		}
		if c.CapturedAt, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("capture %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns the recorded value of id.
func (s *Store) Get(ctx context.Context, id oid.OID) (snmp.Varbind, error) {
	var kind, text string
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, value FROM varbinds WHERE oid = ?`, id.String(),
	).Scan(&kind, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return snmp.Missing(id), nil
	}
	if err != nil {
		return snmp.Varbind{}, fmt.Errorf("get %s: %w", id, err)
	}
	return snmp.Varbind{OID: id, Value: snmp.Value{Kind: snmp.Kind(kind), Text: text}}, nil
}

// GetMany returns the recorded values of ids, in order.
func (s *Store) GetMany(ctx context.Context, ids []oid.OID) ([]snmp.Varbind, error) {
	out := make([]snmp.Varbind, 0, len(ids))
	for _, id := range ids {
		vb, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, vb)
	}
	return out, nil
}

// Walk returns the recorded descendants of root in identifier order.
func (s *Store) Walk(ctx context.Context, root oid.OID) ([]snmp.Varbind, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT oid, kind, value FROM varbinds WHERE oid LIKE ? || '.%'`, root.String())
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	defer rows.Close()

	var out []snmp.Varbind
	for rows.Next() {
		var dotted, kind, text string
		if err := rows.Scan(&dotted, &kind, &text); err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
		id, err := oid.Parse(dotted)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
		if !root.IsAncestorOf(id) {
			continue
		}
		out = append(out, snmp.Varbind{OID: id, Value: snmp.Value{Kind: snmp.Kind(kind), Text: text}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.SortFunc(out, func(a, b snmp.Varbind) int { return oid.Compare(a.OID, b.OID) })
	return out, nil
}
