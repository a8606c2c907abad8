package tracex

// Interest is a collector's cached opinion about a callsite.
type Interest uint8

const (
	// InterestNever means no collector wants the callsite until the next
	// interest cache rebuild.
	InterestNever Interest = iota
	// InterestSometimes means the decision depends on per-call data; the
	// current dispatch must be asked through Enabled on every call.
	InterestSometimes
	// InterestAlways means the callsite may skip the Enabled check.
	InterestAlways
)

// IsNever reports whether i is InterestNever.
func (i Interest) IsNever() bool { return i == InterestNever }

// IsSometimes reports whether i is InterestSometimes.
func (i Interest) IsSometimes() bool { return i == InterestSometimes }

// IsAlways reports whether i is InterestAlways.
func (i Interest) IsAlways() bool { return i == InterestAlways }

// And combines the opinions of two collectors: equal opinions are kept,
// differing ones collapse to InterestSometimes.
func (i Interest) And(o Interest) Interest {
	if i == o {
		return i
	}

	return InterestSometimes
}

// String returns "never", "sometimes" or "always".
func (i Interest) String() string {
	switch i {
	case InterestNever:
		return "never"
	case InterestAlways:
		return "always"
	default:
		return "sometimes"
	}
}
