package service

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/opentalk/chatroom/internal/cache"
	"github.com/opentalk/chatroom/internal/config"
	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/repository"
	"github.com/opentalk/chatroom/pkg/log"
)

var ErrRoomNotFound = errors.New("room not found")

// roomServiceImpl implements RoomService interface.
type roomServiceImpl struct {
	repo     repository.RoomRepository
	cache    cache.RoomCache
	cacheCfg config.CacheConfig
	live     Presence
}

// NewRoomService creates a new room service. cache may be nil, in which
// case every read goes to the database.
func NewRoomService(repo repository.RoomRepository, roomCache cache.RoomCache, cacheCfg config.CacheConfig, live Presence) RoomService {
	return &roomServiceImpl{
		repo:     repo,
		cache:    roomCache,
		cacheCfg: cacheCfg,
		live:     live,
	}
}

// CreateRoom creates a new room.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.RoomResponse, error) {
	room := &domain.Room{
		Name: req.Name,
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	resp := room.ToResponse()
	return &resp, nil
}

// GetRoom retrieves a room by ID with its live user count.
func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID uint) (*domain.RoomWithCount, error) {
	room, err := s.getCached(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return &domain.RoomWithCount{
		RoomResponse: room.ToResponse(),
		Count:        s.live.Count(room.ID),
	}, nil
}

// ListRooms lists rooms, optionally filtered by exact name, each with its
// live user count.
func (s *roomServiceImpl) ListRooms(ctx context.Context, name string) ([]domain.RoomWithCount, error) {
	rooms, err := s.repo.List(ctx, name)
	if err != nil {
		return nil, err
	}

	return lo.Map(rooms, func(room domain.Room, _ int) domain.RoomWithCount {
		return domain.RoomWithCount{
			RoomResponse: room.ToResponse(),
			Count:        s.live.Count(room.ID),
		}
	}), nil
}

// RenameRoom updates a room name.
func (s *roomServiceImpl) RenameRoom(ctx context.Context, roomID uint, req *domain.UpdateRoomRequest) (*domain.RoomResponse, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	room.Name = req.Name
	if err := s.repo.Update(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, roomID)

	resp := room.ToResponse()
	return &resp, nil
}

// DeleteRoom removes a room, its messages (database cascade) and its
// live users.
func (s *roomServiceImpl) DeleteRoom(ctx context.Context, roomID uint) error {
	if err := s.repo.Delete(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	s.invalidate(ctx, roomID)
	s.live.RemoveRoom(roomID)
	return nil
}

// getCached reads a room through the cache when one is configured. A
// broken cache degrades to the database.
func (s *roomServiceImpl) getCached(ctx context.Context, roomID uint) (*domain.Room, error) {
	if s.cache == nil {
		return s.repo.GetByID(ctx, roomID)
	}

	l := log.Ctx(ctx)

	key := s.cache.BuildKeyByID(roomID)
	if result, err := s.cache.Get(ctx, key); err == nil {
		return &result.Room, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn().Err(err).Uint(log.FieldRoomID, roomID).Msg("room cache read failed")
	}

	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, &cache.RoomCacheResult{Room: *room}, s.cacheCfg.TTL); err != nil {
		l.Warn().Err(err).Uint(log.FieldRoomID, roomID).Msg("room cache write failed")
	}

	return room, nil
}

func (s *roomServiceImpl) invalidate(ctx context.Context, roomID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cache.BuildKeyByID(roomID)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Uint(log.FieldRoomID, roomID).Msg("room cache invalidation failed")
	}
}
