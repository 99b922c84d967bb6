package hub

import (
	"hash/fnv"
)

// Palette is the fixed set of presence colors
var Palette = [...]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
}

// ColorFor picks a palette color from the connection id
// FUNCTIONAL DISCOVERY: Colors may collide between participants; the hash
// only makes a reconnecting test client predictable
func ColorFor(connID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(connID))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

// DefaultName derives a display name from the first six characters of the id
func DefaultName(connID string) string {
	short := connID
	if len(short) > 6 {
		short = short[:6]
	}
	return "User-" + short
}
