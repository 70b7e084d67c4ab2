package model

import "fmt"

// AccessLevel orders the actions a collection policy can grant. A rule that
// grants a level grants everything below it.
type AccessLevel int

const (
	NoAccess AccessLevel = iota
	Read
	List
	Write
	Delete
)

var levelNames = map[AccessLevel]string{
	NoAccess: "none",
	Read:     "read",
	List:     "list",
	Write:    "write",
	Delete:   "delete",
}

func (l AccessLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("access_level(%d)", int(l))
}

// ParseAccessLevel maps the policy JSON level names back to levels.
func ParseAccessLevel(s string) (AccessLevel, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return NoAccess, NewError(KindInvalidRequest, "access.level", "unknown access level %q").Fmt(s)
}

// AccessDecision is the result of evaluating a collection policy for one
// request. Granted and RequiresSecondaryAuth are mutually exclusive; both
// false means forbidden.
type AccessDecision struct {
	Granted               bool
	RequiresSecondaryAuth bool
	Reason                string
}
