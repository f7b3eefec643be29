package specs

// Operator is a threshold comparison operator.
type Operator string

const (
	OperatorLess           Operator = "<"
	OperatorLessOrEqual    Operator = "<="
	OperatorGreater        Operator = ">"
	OperatorGreaterOrEqual Operator = ">="
	OperatorEqual          Operator = "=="
	OperatorNotEqual       Operator = "!="
)

// Valid returns true when operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorLess, OperatorLessOrEqual, OperatorGreater, OperatorGreaterOrEqual, OperatorEqual, OperatorNotEqual:
		return true
	default:
		return false
	}
}

// Compare reports whether measured passes against threshold, reading as
// "measured <op> threshold".
func (o Operator) Compare(measured, threshold float64) bool {
	switch o {
	case OperatorLess:
		return measured < threshold
	case OperatorLessOrEqual:
		return measured <= threshold
	case OperatorGreater:
		return measured > threshold
	case OperatorGreaterOrEqual:
		return measured >= threshold
	case OperatorEqual:
		return measured == threshold
	case OperatorNotEqual:
		return measured != threshold
	default:
		return false
	}
}
