package models

const (
	PaymentUnpaid  = "unpaid"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

const (
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodOnline       = "online"
	PaymentMethodOther        = "other"
)

// DerivePaymentStatus is the only place a payment status is computed from amounts.
// A zero total counts as paid.
func DerivePaymentStatus(amountPaid, total float64) string {
	switch {
	case amountPaid >= total:
		return PaymentPaid
	case amountPaid <= 0:
		return PaymentUnpaid
	default:
		return PaymentPartial
	}
}

func IsValidPaymentStatus(s string) bool {
	return s == PaymentUnpaid || s == PaymentPartial || s == PaymentPaid
}
