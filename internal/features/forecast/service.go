package forecast

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Subscribe включает подписку. Ненулевой arcan сохраняется вместе с ней.
func (s *Service) Subscribe(ctx context.Context, userID int64, arcan int) error {
	if err := s.repo.Subscribe(ctx, userID); err != nil {
		return err
	}
	if arcan > 0 {
		return s.repo.SetField(ctx, userID, "arcan", arcan)
	}
	return nil
}

// SetArcan сохраняет аркан пользователя в записи прогноза.
func (s *Service) SetArcan(ctx context.Context, userID int64, arcan int) error {
	return s.repo.SetField(ctx, userID, "arcan", arcan)
}

// MissingUsers — переданные пользователи без записи прогноза.
func (s *Service) MissingUsers(ctx context.Context, candidates []int64) ([]int64, error) {
	return s.repo.MissingUsers(ctx, candidates)
}

func (s *Service) Unsubscribe(ctx context.Context, userID int64) error {
	return s.repo.Unsubscribe(ctx, userID)
}

func (s *Service) IsSubscribed(ctx context.Context, userID int64) (bool, error) {
	return s.repo.IsSubscribed(ctx, userID)
}

func (s *Service) Subscribers(ctx context.Context) ([]int64, error) {
	return s.repo.Subscribers(ctx)
}

// ScheduleUseful назначает время отправки полезного сообщения.
func (s *Service) ScheduleUseful(ctx context.Context, userID int64, at time.Time) error {
	return s.repo.SetField(ctx, userID, "time_to_send_useful", at)
}

func (s *Service) DueUseful(ctx context.Context, now time.Time) ([]int64, error) {
	return s.repo.DueUseful(ctx, now)
}

func (s *Service) MarkUsefulSent(ctx context.Context, userID int64) error {
	return s.repo.MarkUsefulSent(ctx, userID)
}

// ResetMonth сбрасывает отметки рассылки перед новым месяцем.
func (s *Service) ResetMonth(ctx context.Context) error {
	affected, err := s.repo.ResetUsefulSent(ctx)
	if err != nil {
		return err
	}
	logrus.WithField("count", affected).Info("Сброшены отметки месячной рассылки")
	return nil
}

// SaveDescription сохраняет описание аркана на текущий месяц, если
// месяц не указан явно.
func (s *Service) SaveDescription(ctx context.Context, arcan int, month, text string) error {
	if month == "" {
		month = common.CurrentMonth()
	}
	return s.repo.UpsertDescription(ctx, arcan, month, text)
}

func (s *Service) Description(ctx context.Context, arcan int, month string) (*Description, error) {
	if month == "" {
		month = common.CurrentMonth()
	}
	return s.repo.GetDescription(ctx, arcan, month)
}
