package service

import (
	"context"
	"fmt"
	"strings"
	"teacher_connect_backend/internal/cache"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/repository"
	"teacher_connect_backend/internal/util"
	"teacher_connect_backend/pkg/logger"
	"teacher_connect_backend/pkg/monitoring"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CreditLedger 只追加的积分流水
type CreditLedger interface {
	Append(ctx context.Context, txn *model.CreditTransaction) error
	SumByStudent(ctx context.Context, studentID uint) (int64, error)
	ListByStudent(ctx context.Context, studentID uint, page, limit int) ([]model.CreditTransaction, int64, error)
	TopBalances(ctx context.Context, limit int) ([]repository.BalanceRow, error)
	RankOf(ctx context.Context, studentID uint) (int64, error)
}

type UserLookup interface {
	FindByIDs(ctx context.Context, ids []uint) ([]model.User, error)
}

type CreditService struct {
	Ledger CreditLedger
	Users  UserLookup
	// 为空时排行榜直接走 SQL 聚合
	Cache cache.LeaderboardCache
}

func NewCreditService(ledger CreditLedger, users UserLookup, lb cache.LeaderboardCache) *CreditService {
	return &CreditService{Ledger: ledger, Users: users, Cache: lb}
}

type AwardRequest struct {
	StudentID   uint                  `json:"studentId" binding:"required"`
	Type        model.TransactionType `json:"type" binding:"required"`
	Amount      int                   `json:"amount" binding:"required"`
	Description string                `json:"description"`
	ReferenceID string                `json:"referenceId"`
}

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	StudentID uint   `json:"studentId"`
	Name      string `json:"name"`
	Balance   int64  `json:"balance"`
}

// Award 手动发放积分；assessment 类型只能由提交作答产生
func (s *CreditService) Award(ctx context.Context, req AwardRequest) (*model.CreditTransaction, error) {
	if !req.Type.Valid() || req.Type == model.TxAssessment {
		return nil, errors.Wrapf(util.ErrInvalidCredit, "不支持的积分类型 %q", req.Type)
	}
	if req.Amount <= 0 {
		return nil, errors.Wrap(util.ErrInvalidCredit, "积分数量必须大于 0")
	}

	users, err := s.Users.FindByIDs(ctx, []uint{req.StudentID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, util.ErrUserNotFound
	}

	txn := &model.CreditTransaction{
		StudentID:   req.StudentID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if ref := strings.TrimSpace(req.ReferenceID); ref != "" {
		txn.ReferenceID = &ref
	}
	if txn.Description == "" {
		txn.Description = fmt.Sprintf("Awarded %d credits (%s)", req.Amount, req.Type)
	}

	if err := s.Ledger.Append(ctx, txn); err != nil {
		return nil, err
	}
	s.recorded(ctx, txn)
	return txn, nil
}

// recorded 流水落库后更新排行榜缓存，缓存失败不影响结果
func (s *CreditService) recorded(ctx context.Context, txn *model.CreditTransaction) {
	monitoring.RecordCredits(string(txn.Type), txn.Amount)
	logger.Log.Info("credits recorded",
		zap.Uint("studentId", txn.StudentID),
		zap.String("type", string(txn.Type)),
		zap.Int("amount", txn.Amount))

	if s.Cache == nil {
		return
	}
	if err := s.Cache.Increment(ctx, txn.StudentID, txn.Amount); err != nil {
		logger.Log.Warn("leaderboard cache update failed", zap.Uint("studentId", txn.StudentID), zap.Error(err))
	}
}

func (s *CreditService) Balance(ctx context.Context, studentID uint) (int64, error) {
	return s.Ledger.SumByStudent(ctx, studentID)
}

// Rank 学生在排行榜中的名次，从 1 开始，没有积分时为 0。
// 优先读缓存，缓存中没有时按流水计算
func (s *CreditService) Rank(ctx context.Context, studentID uint) (int64, error) {
	if s.Cache != nil {
		rank, err := s.Cache.Rank(ctx, studentID)
		if err != nil {
			logger.Log.Warn("leaderboard cache rank failed, using database", zap.Uint("studentId", studentID), zap.Error(err))
		} else if rank > 0 {
			return rank, nil
		}
	}
	return s.Ledger.RankOf(ctx, studentID)
}

func (s *CreditService) History(ctx context.Context, studentID uint, page, limit int) ([]model.CreditTransaction, int64, error) {
	page, limit = util.Pagination(page, limit)
	return s.Ledger.ListByStudent(ctx, studentID, page, limit)
}

func (s *CreditService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	_, limit = util.Pagination(1, limit)

	var entries []LeaderboardEntry
	if s.Cache != nil {
		top, err := s.Cache.Top(ctx, limit)
		if err != nil {
			logger.Log.Warn("leaderboard cache read failed, using database", zap.Error(err))
		}
		for _, e := range top {
			entries = append(entries, LeaderboardEntry{StudentID: e.StudentID, Balance: e.Balance})
		}
	}

	if len(entries) == 0 {
		rows, err := s.Ledger.TopBalances(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			entries = append(entries, LeaderboardEntry{StudentID: r.StudentID, Balance: r.Balance})
		}
	}

	ids := make([]uint, len(entries))
	for i := range entries {
		entries[i].Rank = i + 1
		ids[i] = entries[i].StudentID
	}
	if len(ids) > 0 {
		users, err := s.Users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		names := make(map[uint]string, len(users))
		for _, u := range users {
			names[u.ID] = u.Name
		}
		for i := range entries {
			entries[i].Name = names[entries[i].StudentID]
		}
	}
	return entries, nil
}

// RebuildLeaderboard 用流水汇总覆盖排行榜缓存
func (s *CreditService) RebuildLeaderboard(ctx context.Context) (int, error) {
	if s.Cache == nil {
		return 0, errors.New("leaderboard cache is not configured")
	}
	rows, err := s.Ledger.TopBalances(ctx, 0)
	if err != nil {
		return 0, err
	}
	balances := make(map[uint]int64, len(rows))
	for _, r := range rows {
		balances[r.StudentID] = r.Balance
	}
	if err := s.Cache.Replace(ctx, balances); err != nil {
		return 0, errors.Wrap(err, "replace leaderboard")
	}
	logger.Log.Info("leaderboard rebuilt", zap.Int("students", len(balances)))
	return len(balances), nil
}
