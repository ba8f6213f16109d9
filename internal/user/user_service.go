package user

import (
	"context"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

const searchLimit = 20

type UserService interface {
	RegisterUser(ctx context.Context, handle, name, email, password string) (*dbmongo.User, string, error)
	LoginUser(ctx context.Context, handle, password string) (*dbmongo.User, string, error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*dbmongo.User, error)
	GetByHandle(ctx context.Context, handle string) (*dbmongo.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, update dbmongo.ProfileUpdate) (*dbmongo.User, error)
	SearchUsers(ctx context.Context, prefix string) ([]*dbmongo.User, error)
	Follow(ctx context.Context, followerID, targetID primitive.ObjectID) error
	Unfollow(ctx context.Context, followerID, targetID primitive.ObjectID) error
	ToggleFollow(ctx context.Context, followerID, targetID primitive.ObjectID) (bool, error)
}

type userService struct {
	userRepo UserRepository
	tokens   *common.TokenIssuer
	clock    clockwork.Clock
	log      zerolog.Logger
}

func NewUserService(userRepo UserRepository, tokens *common.TokenIssuer, clock clockwork.Clock, log zerolog.Logger) UserService {
	return &userService{userRepo: userRepo, tokens: tokens, clock: clock, log: log}
}

func (s *userService) RegisterUser(ctx context.Context, handle, name, email, password string) (*dbmongo.User, string, error) {
	handle = strings.TrimSpace(handle)
	if err := common.ValidateHandle(handle); err != nil {
		return nil, "", err
	}
	if err := common.ValidateEmail(email); err != nil {
		return nil, "", err
	}
	if err := common.ValidatePassword(password); err != nil {
		return nil, "", err
	}

	if _, err := s.userRepo.GetUserByHandle(ctx, handle); err == nil {
		return nil, "", common.Conflictf("handle %q already exists", handle)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, "", err
	}

	hashed, err := common.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	now := s.clock.Now().UTC()
	user := &dbmongo.User{
		Username:     handle,
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, "", common.Conflictf("handle %q already exists", handle)
		}
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID.Hex(), user.Username)
	if err != nil {
		return nil, "", err
	}
	s.log.Info().Str("handle", handle).Msg("user registered")
	return user, token, nil
}

func (s *userService) LoginUser(ctx context.Context, handle, password string) (*dbmongo.User, string, error) {
	if handle == "" || password == "" {
		return nil, "", common.Validationf("handle and password required")
	}

	user, err := s.userRepo.GetUserByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, "", common.Unauthorizedf("invalid handle or password")
		}
		return nil, "", err
	}
	if err := common.CheckPassword(password, user.PasswordHash); err != nil {
		return nil, "", common.Unauthorizedf("invalid handle or password")
	}

	token, err := s.tokens.GenerateToken(user.ID.Hex(), user.Username)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	if err := common.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := common.CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return common.Unauthorizedf("current password is incorrect")
	}
	hashed, err := common.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, userID, hashed, s.clock.Now().UTC())
}

func (s *userService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*dbmongo.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

func (s *userService) GetByHandle(ctx context.Context, handle string) (*dbmongo.User, error) {
	return s.userRepo.GetUserByHandle(ctx, handle)
}

func (s *userService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, update dbmongo.ProfileUpdate) (*dbmongo.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil {
		handle := strings.TrimSpace(*update.Username)
		if err := common.ValidateHandle(handle); err != nil {
			return nil, err
		}
		update.Username = &handle
		if handle == user.Username {
			update.Username = nil
		} else if other, err := s.userRepo.GetUserByHandle(ctx, handle); err == nil && other.ID != userID {
			return nil, common.Conflictf("handle %q already exists", handle)
		} else if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}
	if update.Bio != nil && len([]rune(*update.Bio)) > common.MaxBioLength {
		return nil, common.Validationf("bio exceeds %d characters", common.MaxBioLength)
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, update, s.clock.Now().UTC()); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.Conflictf("handle already exists")
		}
		return nil, err
	}
	return s.userRepo.GetUserByID(ctx, userID)
}

func (s *userService) SearchUsers(ctx context.Context, prefix string) ([]*dbmongo.User, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []*dbmongo.User{}, nil
	}
	return s.userRepo.SearchByHandlePrefix(ctx, prefix, searchLimit)
}

// Follow records followerID -> targetID on both documents. If the second write
// fails the first is undone so the pair never ends up one-sided.
func (s *userService) Follow(ctx context.Context, followerID, targetID primitive.ObjectID) error {
	if err := s.checkPair(ctx, followerID, targetID); err != nil {
		return err
	}

	added, err := s.userRepo.AddRef(ctx, targetID, dbmongo.RefFollowers, followerID)
	if err != nil {
		return err
	}
	if _, err := s.userRepo.AddRef(ctx, followerID, dbmongo.RefFollowings, targetID); err != nil {
		if added {
			if _, rbErr := s.userRepo.RemoveRef(ctx, targetID, dbmongo.RefFollowers, followerID); rbErr != nil {
				s.log.Error().Err(rbErr).
					Str("follower", followerID.Hex()).Str("target", targetID.Hex()).
					Msg("failed to roll back follower edge")
			}
		}
		return err
	}
	return nil
}

// Unfollow removes the pair. Removing an absent edge is a no-op.
func (s *userService) Unfollow(ctx context.Context, followerID, targetID primitive.ObjectID) error {
	if err := s.checkPair(ctx, followerID, targetID); err != nil {
		return err
	}

	removed, err := s.userRepo.RemoveRef(ctx, targetID, dbmongo.RefFollowers, followerID)
	if err != nil {
		return err
	}
	if _, err := s.userRepo.RemoveRef(ctx, followerID, dbmongo.RefFollowings, targetID); err != nil {
		if removed {
			if _, rbErr := s.userRepo.AddRef(ctx, targetID, dbmongo.RefFollowers, followerID); rbErr != nil {
				s.log.Error().Err(rbErr).
					Str("follower", followerID.Hex()).Str("target", targetID.Hex()).
					Msg("failed to restore follower edge")
			}
		}
		return err
	}
	return nil
}

// ToggleFollow follows when not following and unfollows otherwise. It returns
// the resulting state.
func (s *userService) ToggleFollow(ctx context.Context, followerID, targetID primitive.ObjectID) (bool, error) {
	if followerID == targetID {
		return false, common.Validationf("cannot follow yourself")
	}
	follower, err := s.userRepo.GetUserByID(ctx, followerID)
	if err != nil {
		return false, err
	}

	if follower.HasRef(dbmongo.RefFollowings, targetID) {
		if err := s.Unfollow(ctx, followerID, targetID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := s.Follow(ctx, followerID, targetID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *userService) checkPair(ctx context.Context, followerID, targetID primitive.ObjectID) error {
	if followerID == targetID {
		return common.Validationf("cannot follow yourself")
	}
	if _, err := s.userRepo.GetUserByID(ctx, followerID); err != nil {
		return err
	}
	if _, err := s.userRepo.GetUserByID(ctx, targetID); err != nil {
		return err
	}
	return nil
}
