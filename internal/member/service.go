package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	WithinReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service interface {
	Join(ctx context.Context, m *Member) (uuid.UUID, error)
	FindMembers(ctx context.Context) ([]*Member, error)
	FindOne(ctx context.Context, id uuid.UUID) (*Member, error)
	Update(ctx context.Context, id uuid.UUID, name string) (*Member, error)
}

type service struct {
	repo Repository
	tx   Transactor
}

func NewService(repo Repository, tx Transactor) Service {
	return &service{repo: repo, tx: tx}
}

// Join registers a new member. Names are unique.
func (s *service) Join(ctx context.Context, m *Member) (uuid.UUID, error) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByName(ctx, m.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrDuplicateName
		}
		return s.repo.Save(ctx, m)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateName) {
			log.Warn().Str("name", m.Name).Msg("Member registration rejected: duplicate name")
			return uuid.Nil, ErrDuplicateName
		}
		log.Error().Err(err).Str("name", m.Name).Msg("Failed to register member")
		return uuid.Nil, fmt.Errorf("failed to join member: %w", err)
	}

	return m.ID, nil
}

func (s *service) FindMembers(ctx context.Context) ([]*Member, error) {
	members, err := s.repo.FindAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list members")
		return nil, fmt.Errorf("failed to find members: %w", err)
	}
	return members, nil
}

func (s *service) FindOne(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("member_id", id).Msg("Failed to get member")
		return nil, fmt.Errorf("failed to get member by id '%s': %w", id, err)
	}
	return m, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, name string) (*Member, error) {
	var updated *Member
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		m.Name = name
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateName) {
			return nil, err
		}
		log.Error().Err(err).Stringer("member_id", id).Msg("Failed to update member")
		return nil, fmt.Errorf("failed to update member by id '%s': %w", id, err)
	}
	return updated, nil
}
