package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/governing.space/internal/platform/pagination"
	"github.com/louisbranch/governing.space/internal/services/governance/core/filter"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
)

const eventColumns = `seq, event_hash, prev_event_hash, chain_hash, signature_key_id, event_signature,
	timestamp, event_type, organization_id, actor_type, actor_id, entity_type, entity_id,
	request_id, correlation_id, causation_id, payload_json`

// BatchAppend atomically appends events in a single transaction.
//
// Sequence numbers are allocated contiguously, and chain hashes link each
// event to its predecessor, including the last previously stored event for
// the first item in the batch.
func (s *Store) BatchAppend(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if len(events) == 0 {
		return nil, journal.ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	// Validate all events before opening a transaction.
	validated := make([]event.Event, len(events))
	for i, evt := range events {
		if s.eventRegistry != nil {
			v, err := s.eventRegistry.ValidateForAppend(evt)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			evt = v
		}
		validated[i] = evt
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastSeq uint64
	prevChainHash := ""
	row := tx.QueryRowContext(ctx, "SELECT seq, chain_hash FROM events ORDER BY seq DESC LIMIT 1")
	if err := row.Scan(&lastSeq, &prevChainHash); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load previous event: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	stored := make([]event.Event, len(validated))
	for i, evt := range validated {
		sealed, err := journal.Seal(evt, lastSeq+uint64(i)+1, prevChainHash, s.keyring)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			int64(sealed.Seq),
			sealed.Hash,
			sealed.PrevHash,
			sealed.ChainHash,
			sealed.SignatureKeyID,
			sealed.Signature,
			toMillis(sealed.Timestamp),
			string(sealed.Type),
			sealed.OrganizationID,
			string(sealed.ActorType),
			sealed.ActorID,
			sealed.EntityType,
			sealed.EntityID,
			sealed.RequestID,
			sealed.CorrelationID,
			sealed.CausationID,
			sealed.PayloadJSON,
		); err != nil {
			return nil, fmt.Errorf("append event %d: %w", i, err)
		}
		prevChainHash = sealed.ChainHash
		stored[i] = sealed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// ListEvents returns up to limit events with seq greater than afterSeq.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = journal.MaxPageSize
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE seq > ? ORDER BY seq ASC LIMIT ?",
		int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return scanEvents(rows)
}

// ListEventsPage returns a filtered page of events.
func (s *Store) ListEventsPage(ctx context.Context, req journal.PageRequest) (journal.Page, error) {
	if s == nil || s.sqlDB == nil {
		return journal.Page{}, fmt.Errorf("storage is not configured")
	}
	cond, err := filter.ParseEventFilter(req.Filter)
	if err != nil {
		return journal.Page{}, err
	}
	cursor, err := pagination.DecodeSeqToken(req.PageToken)
	if err != nil {
		return journal.Page{}, err
	}
	plan := buildListEventsPagePlan(req, cond, cursor)

	var total int
	if err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE "+plan.countWhereClause, plan.countParams...,
	).Scan(&total); err != nil {
		return journal.Page{}, fmt.Errorf("count events: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE "+plan.whereClause+" "+plan.orderClause+" "+plan.limitClause,
		plan.params...,
	)
	if err != nil {
		return journal.Page{}, fmt.Errorf("list events page: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return journal.Page{}, err
	}

	page := journal.Page{TotalSize: total, Events: events}
	if len(events) > plan.pageSize {
		page.Events = events[:plan.pageSize]
		page.NextPageToken = pagination.EncodeSeqToken(page.Events[plan.pageSize-1].Seq)
	}
	return page, nil
}

// LastSeq returns the seq of the newest event, or zero.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var seq sql.NullInt64
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT MAX(seq) FROM events").Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return uint64(seq.Int64), nil
}

type listEventsPagePlan struct {
	whereClause      string
	params           []any
	orderClause      string
	limitClause      string
	countWhereClause string
	countParams      []any
	pageSize         int
}

func buildListEventsPagePlan(req journal.PageRequest, cond filter.SQLCondition, cursor uint64) listEventsPagePlan {
	pageSize := pagination.ClampPageSize(req.PageSize, pagination.PageSizeConfig{Default: journal.DefaultPageSize, Max: journal.MaxPageSize})

	countWhere := []string{"1 = 1"}
	var countParams []any
	if cond.Clause != "" {
		countWhere = append(countWhere, cond.Clause)
		countParams = append(countParams, cond.Params...)
	}

	where := append([]string(nil), countWhere...)
	params := append([]any(nil), countParams...)
	if cursor > 0 {
		if req.Descending {
			where = append(where, "seq < ?")
		} else {
			where = append(where, "seq > ?")
		}
		params = append(params, int64(cursor))
	}

	orderClause := "ORDER BY seq ASC"
	if req.Descending {
		orderClause = "ORDER BY seq DESC"
	}
	return listEventsPagePlan{
		whereClause:      strings.Join(where, " AND "),
		params:           params,
		orderClause:      orderClause,
		limitClause:      fmt.Sprintf("LIMIT %d", pageSize+1),
		countWhereClause: strings.Join(countWhere, " AND "),
		countParams:      countParams,
		pageSize:         pageSize,
	}
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	defer rows.Close()
	var events []event.Event
	for rows.Next() {
		var (
			evt       event.Event
			seq       int64
			ts        int64
			eventType string
			actorType string
		)
		if err := rows.Scan(
			&seq,
			&evt.Hash,
			&evt.PrevHash,
			&evt.ChainHash,
			&evt.SignatureKeyID,
			&evt.Signature,
			&ts,
			&eventType,
			&evt.OrganizationID,
			&actorType,
			&evt.ActorID,
			&evt.EntityType,
			&evt.EntityID,
			&evt.RequestID,
			&evt.CorrelationID,
			&evt.CausationID,
			&evt.PayloadJSON,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Timestamp = fromMillis(ts)
		evt.Type = event.Type(eventType)
		evt.ActorType = event.ActorType(actorType)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
