package postgres

import (
	"context"
	"fmt"

	"github.com/nkiryanov/cardservice/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{db: s.db}
}

func (s *Storage) Card() repository.CardRepo {
	return &CardRepo{db: s.db}
}

func (s *Storage) Operation() repository.OperationRepo {
	return &OperationRepo{db: s.db}
}

func (s *Storage) Transfer() repository.TransferRepo {
	return &TransferRepo{db: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
