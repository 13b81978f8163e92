package oauth

import (
	"context"
	"errors"

	"github.com/authedge/authedge/model"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type ClientRepository interface {
	FirstByClientID(ctx context.Context, clientID string) (*model.Client, error)
	Create(ctx context.Context, client *model.Client) error
	Delete(ctx context.Context, clientID string) error
}

type clientRepository struct {
	db *gorm.DB
}

func (r *clientRepository) FirstByClientID(ctx context.Context, clientID string) (*model.Client, error) {
	var client model.Client
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	return &client, err
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	var mysqlErr *mysql.MySQLError
	if err := r.db.WithContext(ctx).Create(client).Error; errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrClientAlreadyRegistered
	} else if err != nil {
		return err
	}
	return nil
}

func (r *clientRepository) Delete(ctx context.Context, clientID string) error {
	return r.db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&model.Client{}).Error
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}
