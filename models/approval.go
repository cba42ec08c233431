package models

// ApprovalStatus подстатус процесса одобрения (onay_durumu). Закрытый набор значений
type ApprovalStatus string

const (
	ApprovalNone               ApprovalStatus = ""
	ApprovalPending            ApprovalStatus = "Beklemede"
	ApprovalApproved           ApprovalStatus = "Onaylandı"
	ApprovalRejected           ApprovalStatus = "Reddedildi"
	ApprovalGuarantorRequested ApprovalStatus = "Kefil istendi"
)

// approvalTransitions допустимые переходы подстатуса одобрения
var approvalTransitions = map[ApprovalStatus]map[ApprovalStatus]bool{
	ApprovalNone:               {ApprovalPending: true},
	ApprovalPending:            {ApprovalApproved: true, ApprovalRejected: true, ApprovalGuarantorRequested: true},
	ApprovalGuarantorRequested: {ApprovalPending: true, ApprovalApproved: true, ApprovalRejected: true},
	ApprovalRejected:           {ApprovalPending: true},
	ApprovalApproved:           {},
}

// IsValid проверяет, что значение входит в закрытый набор
func (s ApprovalStatus) IsValid() bool {
	_, ok := approvalTransitions[s]
	return ok
}

// CanTransitionTo проверяет допустимость перехода
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	nexts, ok := approvalTransitions[s]
	if !ok {
		return false
	}
	return nexts[next]
}

// IsAwaitingDecision ожидает ли лид решения администратора
func (s ApprovalStatus) IsAwaitingDecision() bool {
	return s == ApprovalPending || s == ApprovalGuarantorRequested
}
