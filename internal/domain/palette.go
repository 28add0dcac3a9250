package domain

// WheelColors is the slice palette, assigned by position
var WheelColors = []string{
	"#dc2626", // blood red
	"#7c3aed", // violet
	"#0891b2", // cyan
	"#c026d3", // fuchsia
	"#ea580c", // ember
	"#16a34a", // venom
	"#2563eb", // cobalt
	"#ca8a04", // brass
	"#be123c", // crimson
	"#4f46e5", // indigo
}

// DemoRoster seeds a new wheel when demo mode is on, and is what reset and
// the preset action restore
var DemoRoster = []string{
	"Asmodeus",
	"Lilith",
	"Belial",
	"Mammon",
	"Azazel",
	"Astaroth",
	"Baal",
	"Abaddon",
}
