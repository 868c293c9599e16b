package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"library/internal/models"
	"library/internal/storage"
)

const memberSelect = `SELECT m.member_id, m.name, m.email, m.phone, m.join_date,
	(SELECT COUNT(*) FROM loans l WHERE l.member_id = m.member_id AND l.status = 'BORROWED') AS active_loans
	FROM members m`

// CreateMember inserts a new member and returns its id
func (s *Store) CreateMember(ctx context.Context, in models.MemberInput) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.rebind(`INSERT INTO members (name, email, phone) VALUES (?, ?, ?) RETURNING member_id`),
		in.Name, in.Email, in.Phone,
	).Scan(&id)
	if err != nil {
		return 0, wrapWriteErr("create member", err)
	}
	return id, nil
}

// GetMember returns a member with the count of their open loans
func (s *Store) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	var member models.Member
	err := s.db.GetContext(ctx, &member, s.rebind(memberSelect+` WHERE m.member_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound(models.EntityMember, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

// ListMembers returns all members ordered by id
func (s *Store) ListMembers(ctx context.Context) ([]models.Member, error) {
	members := []models.Member{}
	if err := s.db.SelectContext(ctx, &members, memberSelect+` ORDER BY m.member_id`); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ListMembersByName returns all members ordered by name
func (s *Store) ListMembersByName(ctx context.Context) ([]models.Member, error) {
	members := []models.Member{}
	if err := s.db.SelectContext(ctx, &members, memberSelect+` ORDER BY m.name, m.member_id`); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// UpdateMember overwrites name, email and phone
func (s *Store) UpdateMember(ctx context.Context, id int64, in models.MemberInput) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE members SET name = ?, email = ?, phone = ? WHERE member_id = ?`),
		in.Name, in.Email, in.Phone, id)
	if err != nil {
		return wrapWriteErr("update member", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if n == 0 {
		return storage.NotFound(models.EntityMember, id)
	}
	return nil
}

// DeleteMember removes a member without BORROWED loans. The check and the
// delete share one transaction with the member row locked.
func (s *Store) DeleteMember(ctx context.Context, id int64) error {
	return s.withTx(ctx, "delete member", func(tx *sqlx.Tx) error {
		var memberID int64
		err := tx.GetContext(ctx, &memberID,
			s.rebind(`SELECT member_id FROM members WHERE member_id = ?`+s.dialect.forUpdate), id)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound(models.EntityMember, id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock member: %w", err)
		}

		active, err := s.countActiveLoans(ctx, tx, "member_id", id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("member %d has %d active loans: %w", id, active, storage.ErrActiveLoans)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM members WHERE member_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		return nil
	})
}
