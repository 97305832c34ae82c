package block

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is a block-type code. The code space is exactly 256 slots.
type Type uint8

const Count = 256

const (
	Air         Type = 0
	Stone       Type = 1
	Grass       Type = 2
	Dirt        Type = 3
	Cobblestone Type = 4
	Wood        Type = 5
	Shrub       Type = 6
	Bedrock     Type = 7
	Water       Type = 8
	StillWater  Type = 9
	Lava        Type = 10
	StillLava   Type = 11
	Sand        Type = 12
	Gravel      Type = 13
	Trunk       Type = 17
	Leaf        Type = 18
	Sponge      Type = 19
	Glass       Type = 20

	// Red through RedMushroom are the cloth/flower range.
	Red          Type = 21
	Yellowflower Type = 37
	Redflower    Type = 38
	Mushroom     Type = 39
	RedMushroom  Type = 40

	Slab      Type = 44
	Tnt       Type = 46
	Bookcase  Type = 47
	Obsidian  Type = 49
	StoneSlab Type = 50

	// Doors: the closed form is solid, the open form is a transient air cell
	// that reverts to the closed form after a delay.
	DoorTree        Type = 111
	DoorObsidian    Type = 113
	DoorGlass       Type = 114
	DoorStone       Type = 115
	DoorTreeAir     Type = 116
	DoorObsidianAir Type = 117
	DoorGlassAir    Type = 118
	DoorStoneAir    Type = 119

	MessageWhite Type = 130
	MessageBlack Type = 131
	MessageAir   Type = 132
	MessageWater Type = 133

	PortalBlue   Type = 140
	PortalOrange Type = 141
	PortalAir    Type = 142

	ActiveWater Type = 150
	ActiveLava  Type = 151

	TntExplosion  Type = 182
	AirFlood      Type = 200
	AirFloodDown  Type = 201
	AirFloodUp    Type = 202
	AirFloodLayer Type = 203
)

var names = map[Type]string{
	Air: "air", Stone: "stone", Grass: "grass", Dirt: "dirt", Cobblestone: "cobblestone",
	Wood: "wood", Shrub: "shrub", Bedrock: "bedrock", Water: "water", StillWater: "still_water",
	Lava: "lava", StillLava: "still_lava", Sand: "sand", Gravel: "gravel", Trunk: "trunk",
	Leaf: "leaf", Sponge: "sponge", Glass: "glass", Red: "red",
	Yellowflower: "yellow_flower", Redflower: "red_flower", Mushroom: "mushroom", RedMushroom: "red_mushroom",
	Slab: "slab", Tnt: "tnt", Bookcase: "bookcase", Obsidian: "obsidian", StoneSlab: "stone_slab",
	DoorTree: "door_tree", DoorObsidian: "door_obsidian", DoorGlass: "door_glass", DoorStone: "door_stone",
	DoorTreeAir: "door_tree_air", DoorObsidianAir: "door_obsidian_air", DoorGlassAir: "door_glass_air", DoorStoneAir: "door_stone_air",
	MessageWhite: "message_white", MessageBlack: "message_black", MessageAir: "message_air", MessageWater: "message_water",
	PortalBlue: "portal_blue", PortalOrange: "portal_orange", PortalAir: "portal_air",
	ActiveWater: "active_water", ActiveLava: "active_lava", TntExplosion: "tnt_explosion",
	AirFlood: "air_flood", AirFloodDown: "air_flood_down", AirFloodUp: "air_flood_up", AirFloodLayer: "air_flood_layer",
}

func init() {
	for t := Red + 1; t < Yellowflower; t++ {
		names[t] = fmt.Sprintf("cloth_%d", t-Red)
	}
}

// Defined reports whether t names a block known to this server.
func Defined(t Type) bool {
	_, ok := names[t]
	return ok
}

func (t Type) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("block_%d", uint8(t))
}

// Palette returns the names of all 256 codes, indexed by code.
func Palette() []string {
	out := make([]string, Count)
	for i := range out {
		out[i] = Type(i).String()
	}
	return out
}

// Parse accepts a block name or its numeric code. Codes with no name are
// rejected.
func Parse(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= Count || !Defined(Type(n)) {
			return 0, fmt.Errorf("unknown block %q", s)
		}
		return Type(n), nil
	}
	for t, name := range names {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown block %q", s)
}
