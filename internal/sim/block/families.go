package block

// Family is a structurally related group of block types that share a default
// behaviour.
type Family func(t Type) bool

var doorAirs = map[Type]Type{
	DoorTree:     DoorTreeAir,
	DoorObsidian: DoorObsidianAir,
	DoorGlass:    DoorGlassAir,
	DoorStone:    DoorStoneAir,
}

var stable = map[Type]Type{
	DoorTreeAir:     DoorTree,
	DoorObsidianAir: DoorObsidian,
	DoorGlassAir:    DoorGlass,
	DoorStoneAir:    DoorStone,
	AirFlood:        Air,
	AirFloodDown:    Air,
	AirFloodUp:      Air,
	AirFloodLayer:   Air,
}

// IsFalling reports whether t is one of the unstable types whose queued
// updates are replaced rather than dropped on conflict.
func IsFalling(t Type) bool { return t == Sand || t == Gravel }

// DoorAir returns the open form of a closed door.
func DoorAir(t Type) (Type, bool) {
	a, ok := doorAirs[t]
	return a, ok
}

func IsDoor(t Type) bool {
	_, ok := doorAirs[t]
	return ok
}

func IsDoorAir(t Type) bool {
	switch t {
	case DoorTreeAir, DoorObsidianAir, DoorGlassAir, DoorStoneAir:
		return true
	}
	return false
}

func IsAirFlood(t Type) bool {
	switch t {
	case AirFlood, AirFloodDown, AirFloodUp, AirFloodLayer:
		return true
	}
	return false
}

// StableOf returns the type a transient block reverts to on shutdown.
func StableOf(t Type) (Type, bool) {
	s, ok := stable[t]
	return s, ok
}

func IsLiquid(t Type) bool {
	switch t {
	case Water, StillWater, Lava, StillLava, ActiveWater, ActiveLava:
		return true
	}
	return false
}

func IsLava(t Type) bool {
	return t == Lava || t == StillLava || t == ActiveLava
}

// IsFlowerLike covers blocks that react to neighbouring liquids under the
// advanced modes.
func IsFlowerLike(t Type) bool {
	if t >= Red && t <= RedMushroom {
		return true
	}
	return t == Wood || t == Trunk || t == Bookcase
}

func IsMessage(t Type) bool { return t >= MessageWhite && t <= MessageWater }

func IsPortal(t Type) bool { return t >= PortalBlue && t <= PortalAir }

// NeedsRestart reports whether a block left in the grid while the
// simulation was off must be re-queued when it is turned back on.
func NeedsRestart(t Type) bool {
	return t == ActiveWater || t == ActiveLava || IsDoorAir(t) || IsAirFlood(t)
}

// LightPasses reports whether light passes through t.
func LightPasses(t Type) bool {
	switch t {
	case Air, Glass, Leaf, Shrub, Yellowflower, Redflower, Mushroom, RedMushroom:
		return true
	}
	return IsDoorAir(t) || IsAirFlood(t)
}
