package outline

// Kind is the closed set of item types.
type Kind uint8

const (
	KindPlain Kind = iota
	KindHeading
	KindNote
	KindTask
	KindOrdered
	KindUnordered
	KindHR
	KindLatex
)

var kindNames = [...]string{
	KindPlain:     "plain",
	KindHeading:   "heading",
	KindNote:      "note",
	KindTask:      "task",
	KindOrdered:   "ordered",
	KindUnordered: "unordered",
	KindHR:        "hr",
	KindLatex:     "latex",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps a data-type value to a Kind. The empty string is plain.
func ParseKind(s string) (Kind, bool) {
	if s == "" {
		return KindPlain, true
	}
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindPlain, false
}

// Inheritable reports whether a sibling created after a node of this
// kind takes the same kind.
func (k Kind) Inheritable() bool {
	switch k {
	case KindHeading, KindNote, KindTask, KindOrdered, KindUnordered:
		return true
	}
	return false
}

// HasBody reports whether nodes of this kind carry inline content.
func (k Kind) HasBody() bool {
	return k != KindHR
}

// AcceptsChildren reports whether nodes of this kind may own children.
func (k Kind) AcceptsChildren() bool {
	return k != KindHR
}
