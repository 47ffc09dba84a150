package state

// StateChange is the sparse set of changes a narrator reply asks for in one
// turn. Pointer fields distinguish "absent" from an explicit zero value.
type StateChange struct {
	Health         *int     `json:"health,omitempty" jsonschema:"description=Relative health change such as -10 or 0"`
	Standing       *int     `json:"standing,omitempty" jsonschema:"description=Relative change to respect or standing such as -5 or 5"`
	Location       *string  `json:"location,omitempty" jsonschema:"description=New location only when it changes"`
	Inventory      []string `json:"inventory,omitempty" jsonschema:"description=Ordered tokens where +item adds and -item removes"`
	CurrentMission *string  `json:"currentMission,omitempty" jsonschema:"description=New mission only when it changes"`
}

// Inventory token prefixes.
const (
	InventoryAdd    = '+'
	InventoryRemove = '-'
)

// IsEmpty checks if the StateChange carries no changes at all
func (sc *StateChange) IsEmpty() bool {
	return sc == nil || (sc.Health == nil &&
		sc.Standing == nil &&
		sc.Location == nil &&
		len(sc.Inventory) == 0 &&
		sc.CurrentMission == nil)
}
