package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// PostgresStore reads principals of one kind from the identity system's
// principals table and writes back only the verification timestamp.
type PostgresStore struct {
	db      *sql.DB
	kind    id.PrincipalKind
	builder sq.StatementBuilderType
}

func NewPostgres(db *sql.DB, kind id.PrincipalKind) *PostgresStore {
	return &PostgresStore{
		db:      db,
		kind:    kind,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const principalTable = "principals"

func (s *PostgresStore) Kind() id.PrincipalKind { return s.kind }

func (s *PostgresStore) selectBase() sq.SelectBuilder {
	return s.builder.
		Select("id", "kind", "email", "email_verified_at").
		From(principalTable).
		Where(sq.Eq{"kind": s.kind.String()})
}

func (s *PostgresStore) FindByID(ctx context.Context, pid id.PrincipalID) (*Principal, error) {
	sqlStr, args, err := s.selectBase().Where(sq.Eq{"id": uuid.UUID(pid)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}

	p, err := scanPrincipal(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, pids []id.PrincipalID) ([]*Principal, error) {
	if len(pids) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(pids))
	for i, pid := range pids {
		ids[i] = uuid.UUID(pid)
	}
	return s.list(ctx, s.selectBase().Where(sq.Eq{"id": ids}))
}

func (s *PostgresStore) FindMatching(ctx context.Context, query Query) ([]*Principal, error) {
	sel := s.selectBase()

	// Compile the same conditions Query.Matches evaluates in memory.
	if query.Unverified && query.VerifiedBefore != nil {
		sel = sel.Where(sq.Or{
			sq.Eq{"email_verified_at": nil},
			sq.LtOrEq{"email_verified_at": *query.VerifiedBefore},
		})
	} else if query.Unverified {
		sel = sel.Where(sq.Eq{"email_verified_at": nil})
	} else if query.VerifiedBefore != nil {
		sel = sel.Where(sq.LtOrEq{"email_verified_at": *query.VerifiedBefore})
	}
	if query.EmailDomain != "" {
		sel = sel.Where(sq.Like{"email": "%@" + query.EmailDomain})
	}

	return s.list(ctx, sel)
}

func (s *PostgresStore) List(ctx context.Context) ([]*Principal, error) {
	return s.list(ctx, s.selectBase())
}

func (s *PostgresStore) Save(ctx context.Context, p *Principal) error {
	query := s.builder.
		Update(principalTable).
		Set("email_verified_at", p.LastVerifiedAt).
		Where(sq.Eq{"id": uuid.UUID(p.ID), "kind": s.kind.String()})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build save query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("save principal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save principal rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query sq.SelectBuilder) ([]*Principal, error) {
	sqlStr, args, err := query.OrderBy("email ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query principals: %w", err)
	}
	defer rows.Close()

	var principals []*Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate principals: %w", err)
	}
	return principals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*Principal, error) {
	var (
		p    Principal
		pid  uuid.UUID
		kind string
	)
	if err := row.Scan(&pid, &kind, &p.Email, &p.LastVerifiedAt); err != nil {
		return nil, err
	}
	p.ID = id.PrincipalID(pid)
	p.Kind = id.PrincipalKind(kind)
	return &p, nil
}
