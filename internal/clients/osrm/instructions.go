package osrm

import (
	"fmt"
	"strings"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
)

var compassWords = map[string]string{
	"N":  "north",
	"NE": "northeast",
	"E":  "east",
	"SE": "southeast",
	"S":  "south",
	"SW": "southwest",
	"W":  "west",
	"NW": "northwest",
}

// instructionText renders a human-readable sentence for an OSRM step
func instructionText(step Step) string {
	m := step.Maneuver
	onto := ""
	if step.Name != "" {
		onto = " onto " + step.Name
	}

	switch m.Type {
	case "depart":
		text := "Head " + compassWords[geo.CompassLabel(m.BearingAfter)]
		if step.Name != "" {
			text += " on " + step.Name
		}
		return text
	case "arrive":
		return "You have arrived at your destination"
	case "roundabout", "rotary":
		if m.Exit > 0 {
			return fmt.Sprintf("Enter the roundabout and take the %s exit%s", ordinal(m.Exit), onto)
		}
		return "Enter the roundabout" + onto
	case "merge":
		return "Merge" + modifierSuffix(m.Modifier) + onto
	case "on ramp":
		return "Take the ramp" + modifierSuffix(m.Modifier) + onto
	case "off ramp":
		return "Take the exit" + modifierSuffix(m.Modifier) + onto
	case "fork":
		return "Keep" + modifierSuffix(m.Modifier) + " at the fork" + onto
	case "continue", "new name":
		if m.Modifier == "" || m.Modifier == "straight" {
			return "Continue" + onto
		}
		return "Continue" + modifierSuffix(m.Modifier) + onto
	case "end of road":
		return "Turn" + modifierSuffix(m.Modifier) + " at the end of the road" + onto
	default:
		if m.Modifier == "straight" {
			return "Go straight" + onto
		}
		if m.Modifier == "uturn" {
			return "Make a U-turn" + onto
		}
		return "Turn" + modifierSuffix(m.Modifier) + onto
	}
}

// maneuverType flattens type and modifier into a single token, e.g. "turn-left"
func maneuverType(m Maneuver) string {
	t := strings.ReplaceAll(m.Type, " ", "-")
	if m.Modifier == "" {
		return t
	}
	return t + "-" + strings.ReplaceAll(m.Modifier, " ", "-")
}

func modifierSuffix(modifier string) string {
	if modifier == "" {
		return ""
	}
	return " " + modifier
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
