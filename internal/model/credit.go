package model

type TransactionType string

const (
	TxUpload       TransactionType = "upload"
	TxApproval     TransactionType = "approval"
	TxQualityBonus TransactionType = "quality_bonus"
	TxViewBonus    TransactionType = "view_bonus"
	TxLikeBonus    TransactionType = "like_bonus"
	TxAssessment   TransactionType = "assessment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxUpload, TxApproval, TxQualityBonus, TxViewBonus, TxLikeBonus, TxAssessment:
		return true
	}
	return false
}

// CreditTransaction 只追加，学生余额为其全部流水之和
// swagger:model CreditTransaction
type CreditTransaction struct {
	UUIDBase
	StudentID   uint            `gorm:"index" json:"studentId"`
	Type        TransactionType `gorm:"size:30;uniqueIndex:idx_credit_type_ref" json:"type"`
	Amount      int             `gorm:"not null" json:"amount"`
	Description string          `gorm:"size:255" json:"description"`
	ReferenceID *string         `gorm:"size:64;uniqueIndex:idx_credit_type_ref" json:"referenceId,omitempty"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
