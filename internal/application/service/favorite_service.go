package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
)

// ErrFavoritesFull 自选股已满
var ErrFavoritesFull = fmt.Errorf("favorites limit reached (%d)", port.MaxFavorites)

// FavoriteView 自选集合变化的接收方（行情表的 isUserFavorite 标记）
type FavoriteView interface {
	SetFavorites(symbols []string)
}

// FavoriteService 自选股：偏好集合为准，同步到本地记录与行情表
type FavoriteService struct {
	prefs   port.PreferenceStore
	records port.RecordStore // 可为 nil
	view    FavoriteView     // 可为 nil
	max     int
}

func NewFavoriteService(prefs port.PreferenceStore, records port.RecordStore, view FavoriteView) *FavoriteService {
	return &FavoriteService{prefs: prefs, records: records, view: view, max: port.MaxFavorites}
}

// List 当前自选代号（按加入顺序）
func (s *FavoriteService) List(ctx context.Context) ([]string, error) {
	syms, err := s.prefs.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read favorites: %v", port.ErrPersistence, err)
	}
	return syms, nil
}

// Load 启动时把已保存的自选推给行情表
func (s *FavoriteService) Load(ctx context.Context) error {
	syms, err := s.List(ctx)
	if err != nil {
		return err
	}
	if s.view != nil {
		s.view.SetFavorites(syms)
	}
	return nil
}

// Toggle 切换自选状态，返回切换后的状态
func (s *FavoriteService) Toggle(ctx context.Context, symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false, errors.New("symbol is empty")
	}

	syms, err := s.List(ctx)
	if err != nil {
		return false, err
	}

	next := make([]string, 0, len(syms)+1)
	favorite := true
	for _, v := range syms {
		if v == symbol {
			favorite = false
			continue
		}
		next = append(next, v)
	}
	if favorite {
		if len(next) >= s.max {
			return false, ErrFavoritesFull
		}
		next = append(next, symbol)
	}

	if err := s.prefs.Write(ctx, next); err != nil {
		return !favorite, fmt.Errorf("%w: write favorites: %v", port.ErrPersistence, err)
	}
	if s.view != nil {
		s.view.SetFavorites(next)
	}
	if s.records != nil {
		if err := s.records.MarkFavorite(ctx, symbol, favorite, time.Now().UnixMilli()); err != nil {
			// 偏好集合已写入，记录表下次同步时修正
			log.Warn().Err(err).Str("symbol", symbol).Msg("mark favorite failed")
		}
	}

	log.Info().Str("symbol", symbol).Bool("favorite", favorite).Int("count", len(next)).Msg("favorite toggled")
	return favorite, nil
}
