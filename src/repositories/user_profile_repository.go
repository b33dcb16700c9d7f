package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reminder/src/models"
)

type UserProfileRepository interface {
	// FindNotificationProfile returns nil (no error) when the user is unknown.
	FindNotificationProfile(ctx context.Context, userID int64) (*models.UserNotificationProfile, error)
}

type userProfileRepo struct {
	DB *pgxpool.Pool
}

func NewUserProfileRepository(db *pgxpool.Pool) UserProfileRepository {
	return &userProfileRepo{DB: db}
}

func (r *userProfileRepo) FindNotificationProfile(ctx context.Context, userID int64) (*models.UserNotificationProfile, error) {
	var p models.UserNotificationProfile
	err := r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(email, ''), COALESCE(phone_number, ''), COALESCE(wechat_openid, '')
		FROM app_users
		WHERE id = $1`, userID).Scan(&p.UserID, &p.Email, &p.PhoneNumber, &p.WechatOpenID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
