package mindmap

// palette colors nodes by level, cycling once the tree gets deeper than the
// palette is long.
var palette = []string{
	"#1f77b4",
	"#ff7f0e",
	"#2ca02c",
	"#d62728",
	"#9467bd",
	"#8c564b",
}

// PlaceholderColor marks a parent that was referenced but never defined.
const PlaceholderColor = "#666666"

// ColorForLevel returns the palette color for a 1-based tree level.
func ColorForLevel(level int) string {
	if level < 1 {
		level = 1
	}
	return palette[(level-1)%len(palette)]
}
