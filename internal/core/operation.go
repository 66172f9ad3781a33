package core

// Operation names a mutation of a Period Status.
type Operation string

const (
	OpRecordTransaction Operation = "record_transaction"
	OpMarkFullUsage     Operation = "mark_full_usage"
	OpDonateSurplus     Operation = "donate_surplus"
	OpResetPeriod       Operation = "reset_period"
	OpAdminReset        Operation = "admin_reset"
)

func (o Operation) String() string { return string(o) }

// Operations lists every mutation in a stable order.
func Operations() []Operation {
	return []Operation{OpRecordTransaction, OpMarkFullUsage, OpDonateSurplus, OpResetPeriod, OpAdminReset}
}

// ParseOperation validates a wire operation name.
func ParseOperation(s string) (Operation, bool) {
	for _, op := range Operations() {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}
