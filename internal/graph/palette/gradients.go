package palette

// Gradient stops, evenly spaced from low to high.
var gradients = map[string][]string{
	"inferno": {"#000004", "#420a68", "#932667", "#dd513a", "#fca50a", "#fcffa4"},
	"viridis": {"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"},
	"magma":   {"#000004", "#3b0f70", "#8c2981", "#de4968", "#fe9f6d", "#fcfdbf"},
	"plasma":  {"#0d0887", "#6a00a8", "#b12a90", "#e16462", "#fca636", "#f0f921"},
	"cividis": {"#00224e", "#35456c", "#666970", "#948e77", "#c8b866", "#fee838"},
	"turbo":   {"#30123b", "#4686fb", "#1ae4b6", "#a2fc3c", "#faba39", "#e4460a", "#7a0403"},
	"warm":    {"#6e40aa", "#bf3caf", "#fe4b83", "#ff7847", "#e2b72f", "#aff05b"},
	"cool":    {"#6e40aa", "#4c6edb", "#23abd8", "#1ddfa3", "#52f667", "#aff05b"},

	"blue-green":        {"#f7fcfd", "#ccece6", "#66c2a4", "#238b45", "#00441b"},
	"blue-purple":       {"#f7fcfd", "#bfd3e6", "#8c96c6", "#88419d", "#4d004b"},
	"orange-red":        {"#fff7ec", "#fdd49e", "#fc8d59", "#d7301f", "#7f0000"},
	"yellow-green":      {"#ffffe5", "#d9f0a3", "#78c679", "#238443", "#004529"},
	"yellow-orange-red": {"#ffffcc", "#fed976", "#fd8d3c", "#e31a1c", "#800026"},
}
