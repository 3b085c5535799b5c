package metadata

import (
	"fmt"
	"math"

	"github.com/example/assetmeta/internal/features"
)

// Assemble converts an ordered feature set into a metadata tree. Output order
// follows the set exactly.
func Assemble(set features.Set) Tree {
	tree := Tree{NamespaceURI: NamespaceURI, Prefix: NamespacePrefix}
	switch set.Kind {
	case features.KindColor:
		names := make([]string, 0, len(set.Colors))
		webColors := make([]string, 0, len(set.Colors))
		structs := make([]Struct, 0, len(set.Colors))
		for _, c := range set.Colors {
			pct := PercentString(c.Coverage)
			names = append(names, fmt.Sprintf("%s, %s", c.Name, pct))
			webColors = append(webColors, fmt.Sprintf("%s, %s", HexColor(c.Red, c.Green, c.Blue), pct))
			structs = append(structs, Struct{
				{Name: "name", Value: c.Name},
				{Name: "percentage", Value: c.Coverage},
				{Name: "red", Value: c.Red},
				{Name: "green", Value: c.Green},
				{Name: "blue", Value: c.Blue},
			})
		}
		tree.Properties = []Property{
			{Name: PropColorNames, Value: names},
			{Name: PropWebColors, Value: webColors},
			{Name: PropColors, Value: structs},
		}
	default:
		structs := make([]Struct, 0, len(set.Tags))
		for _, tag := range set.Tags {
			structs = append(structs, Struct{
				{Name: "name", Value: tag.Name},
				{Name: "percentage", Value: tag.Confidence},
			})
		}
		tree.Properties = []Property{{Name: PropTags, Value: structs}}
	}
	return tree
}

// HexColor formats channels as a lowercase #rrggbb web color.
func HexColor(red, green, blue int) string {
	return fmt.Sprintf("#%02x%02x%02x", red, green, blue)
}

// roundingSlack absorbs binary representation error so that values written
// as exact halves in decimal (0.595) round up.
const roundingSlack = 1e-9

// PercentString renders a [0,1] fraction as an integer percentage, rounding
// half up.
func PercentString(fraction float64) string {
	return fmt.Sprintf("%d%%", int(math.Floor(fraction*100+0.5+roundingSlack)))
}
