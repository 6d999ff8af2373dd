package repository

import (
	"Courier/internal/model"
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserProfileRepo 用户资料只读仓储
type UserProfileRepo interface {
	GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*model.UserDetail, error)
}

type userProfileRepoImpl struct {
	db *gorm.DB
}

func NewUserProfileRepo(db *gorm.DB) UserProfileRepo {
	return &userProfileRepoImpl{db: db}
}

func (s *userProfileRepoImpl) GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*model.UserDetail, error) {
	users := make([]*model.UserDetail, 0)
	if len(ids) == 0 {
		return users, nil
	}
	result := s.db.WithContext(ctx).
		Select("user_id", "nickname", "avatar_url").
		Where("user_id IN ?", ids).
		Find(&users)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "query user_detail")
	}

	return users, nil
}
