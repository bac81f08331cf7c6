package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// PostgresStore persists the ledger in the security_audits table. This store
// is pure I/O; expiry rules and record construction belong to the policy and
// service layers.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const auditTable = "security_audits"

var auditColumns = []string{
	"id", "subject_kind", "subject_id", "email",
	"verified_at", "password_changed_at",
	"triggered_by", "triggered_by_kind", "reason",
	"created_at", "updated_at",
}

func (s *PostgresStore) Append(ctx context.Context, record *Record) (*Record, error) {
	now := requestcontext.Now(ctx)

	triggeredBy := sql.NullString{String: record.Trigger.String(), Valid: record.Trigger.String() != ""}
	var triggeredByKind sql.NullString
	if p, ok := record.Trigger.Principal(); ok {
		triggeredByKind = sql.NullString{String: p.Kind.String(), Valid: true}
	}

	query := s.builder.
		Insert(auditTable).
		Columns("subject_kind", "subject_id", "email",
			"verified_at", "password_changed_at",
			"triggered_by", "triggered_by_kind", "reason",
			"created_at", "updated_at").
		Values(record.Subject.Kind.String(), uuid.UUID(record.Subject.ID), record.Email,
			record.VerifiedAt, record.PasswordChangedAt,
			triggeredBy, triggeredByKind, nullableString(record.Reason),
			now, now).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build append query: %w", err)
	}

	stored := *record
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&stored.ID); err != nil {
		return nil, fmt.Errorf("append audit record: %w", err)
	}
	return &stored, nil
}

func (s *PostgresStore) LatestPasswordChange(ctx context.Context, subject Subject) (*Record, error) {
	query := s.builder.
		Select(auditColumns...).
		From(auditTable).
		Where(sq.Eq{"subject_kind": subject.Kind.String(), "subject_id": uuid.UUID(subject.ID)}).
		Where("password_changed_at IS NOT NULL").
		OrderBy("password_changed_at DESC", "id DESC").
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest password change query: %w", err)
	}

	record, err := scanRecord(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest password change: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject Subject, filter Filter) ([]*Record, error) {
	query := s.filtered(filter).
		Where(sq.Eq{"subject_kind": subject.Kind.String(), "subject_id": uuid.UUID(subject.ID)}).
		OrderBy("id DESC")
	return s.list(ctx, query)
}

func (s *PostgresStore) ListByTrigger(ctx context.Context, trigger Subject, filter Filter) ([]*Record, error) {
	query := s.filtered(filter).
		Where(sq.Eq{"triggered_by_kind": trigger.Kind.String(), "triggered_by": trigger.ID.String()}).
		OrderBy("id DESC")
	return s.list(ctx, query)
}

func (s *PostgresStore) CountBySubject(ctx context.Context, subject Subject, filter Filter) (int, error) {
	query := s.builder.
		Select("COUNT(*)").
		From(auditTable).
		Where(sq.Eq{"subject_kind": subject.Kind.String(), "subject_id": uuid.UUID(subject.ID)})
	query = applyFilter(query, filter)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) FreshPasswordSubjects(ctx context.Context, kind id.PrincipalKind, cutoff time.Time) (map[id.PrincipalID]struct{}, error) {
	query := s.builder.
		Select("subject_id").
		From(auditTable).
		Where(sq.Eq{"subject_kind": kind.String()}).
		Where("password_changed_at IS NOT NULL").
		GroupBy("subject_id").
		Having("MAX(password_changed_at) > ?", cutoff)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fresh password subjects query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query fresh password subjects: %w", err)
	}
	defer rows.Close()

	fresh := make(map[id.PrincipalID]struct{})
	for rows.Next() {
		var subjectID uuid.UUID
		if err := rows.Scan(&subjectID); err != nil {
			return nil, fmt.Errorf("scan fresh password subject: %w", err)
		}
		fresh[id.PrincipalID(subjectID)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fresh password subjects: %w", err)
	}
	return fresh, nil
}

func (s *PostgresStore) filtered(filter Filter) sq.SelectBuilder {
	return applyFilter(s.builder.Select(auditColumns...).From(auditTable), filter)
}

// applyFilter compiles Filter to the same conditions Filter.Matches checks in
// memory.
func applyFilter(query sq.SelectBuilder, filter Filter) sq.SelectBuilder {
	if filter.Since != nil {
		query = query.Where(sq.GtOrEq{"created_at": *filter.Since})
	}
	if filter.PasswordChanges {
		query = query.Where("password_changed_at IS NOT NULL")
	}
	if filter.Verifications {
		query = query.Where("verified_at IS NOT NULL")
	}
	return query
}

func (s *PostgresStore) list(ctx context.Context, query sq.SelectBuilder) ([]*Record, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record          Record
		subjectKind     string
		subjectID       uuid.UUID
		triggeredBy     sql.NullString
		triggeredByKind sql.NullString
		reason          sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&subjectKind,
		&subjectID,
		&record.Email,
		&record.VerifiedAt,
		&record.PasswordChangedAt,
		&triggeredBy,
		&triggeredByKind,
		&reason,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Subject = Subject{Kind: id.PrincipalKind(subjectKind), ID: id.PrincipalID(subjectID)}
	record.Trigger = triggerFromColumns(triggeredBy.String, triggeredByKind.String)
	record.Reason = reason.String
	return &record, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
