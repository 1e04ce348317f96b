package repository

import (
	"context"
	"errors"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/util"

	"gorm.io/gorm"
)

type CreditRepository struct {
	DB *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{DB: db}
}

type BalanceRow struct {
	StudentID uint  `json:"studentId"`
	Balance   int64 `json:"balance"`
}

// Append 追加一条流水。(type, reference) 唯一索引保证同一引用只记一次，并发写入也不例外
func (r *CreditRepository) Append(ctx context.Context, txn *model.CreditTransaction) error {
	err := r.DB.WithContext(ctx).Create(txn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrDuplicateCredit
	}
	return err
}

func (r *CreditRepository) SumByStudent(ctx context.Context, studentID uint) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.CreditTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("student_id = ?", studentID).
		Scan(&total).Error
	return total, err
}

func (r *CreditRepository) ListByStudent(ctx context.Context, studentID uint, page, limit int) ([]model.CreditTransaction, int64, error) {
	var txns []model.CreditTransaction
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.CreditTransaction{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&txns).Error
	return txns, total, err
}

// RankOf 按余额降序、学生 ID 升序的名次，没有流水时返回 0
func (r *CreditRepository) RankOf(ctx context.Context, studentID uint) (int64, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&model.CreditTransaction{}).
		Where("student_id = ?", studentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	balance, err := r.SumByStudent(ctx, studentID)
	if err != nil {
		return 0, err
	}

	balances := r.DB.Model(&model.CreditTransaction{}).
		Select("student_id, SUM(amount) AS balance").
		Group("student_id")
	var ahead int64
	err = r.DB.WithContext(ctx).Table("(?) AS b", balances).
		Where("b.balance > ? OR (b.balance = ? AND b.student_id < ?)", balance, balance, studentID).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// TopBalances limit <= 0 时返回全部学生
func (r *CreditRepository) TopBalances(ctx context.Context, limit int) ([]BalanceRow, error) {
	var rows []BalanceRow
	query := r.DB.WithContext(ctx).Model(&model.CreditTransaction{}).
		Select("student_id, SUM(amount) AS balance").
		Group("student_id").
		Order("balance desc, student_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Scan(&rows).Error
	return rows, err
}
