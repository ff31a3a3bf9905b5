// Package tags extracts structured avatar directives embedded in AI-generated
// text. Two dialects are recognized: the explicit command form
// [AVATAR:key=value,key=value] and the narrative form [IMAGE: ...],
// [POSITION: ...], [HIDE]. Both are stripped from the returned clean text.
package tags

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"companion.arpa/engine/avatar"
)

var (
	commandTagRe  = regexp.MustCompile(`\[AVATAR:([^\]]+)\]`)
	imageTagRe    = regexp.MustCompile(`\[IMAGE:\s*([^\]]+)\]`)
	positionTagRe = regexp.MustCompile(`\[POSITION:\s*([^\]]+)\]`)
	hideTagRe     = regexp.MustCompile(`\[HIDE\]`)
)

// Positions an avatar may occupy on screen. Anything else in a
// [POSITION: ...] tag is ignored.
var Positions = []string{"left", "right", "center", "top", "bottom"}

// IsPosition reports whether s is a recognized screen position.
func IsPosition(s string) bool {
	return slices.Contains(Positions, s)
}

// PhotoRequest is a narrative-dialect image request: the first [IMAGE: ...]
// tag in a message, optionally qualified by a [POSITION: ...] tag.
type PhotoRequest struct {
	Description string
	Position    string
}

// ParseCommandTags extracts every [AVATAR:...] tag from text. It returns the
// text with all matched tags removed and one Command per tag, in match order.
// Malformed pairs are tolerated: unparseable numbers become NaN/nil and keys
// outside the command vocabulary are reported on Command.Unknown.
func ParseCommandTags(text string) (string, []avatar.Command) {
	matches := commandTagRe.FindAllStringSubmatch(text, -1)
	commands := make([]avatar.Command, 0, len(matches))
	for _, m := range matches {
		commands = append(commands, parseCommandBody(m[1]))
	}
	clean := strings.TrimSpace(commandTagRe.ReplaceAllString(text, ""))
	return clean, commands
}

func parseCommandBody(body string) avatar.Command {
	var cmd avatar.Command
	for _, pair := range strings.Split(body, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "position":
			cmd.Position = &value
		case "expression":
			cmd.Expression = &value
		case "pose":
			cmd.Pose = &value
		case "action":
			cmd.Action = &value
		case "gesture":
			cmd.Gesture = &value
		case "hide":
			b := value == "true"
			cmd.Hide = &b
		case "show":
			b := value == "true"
			cmd.Show = &b
		case "fade":
			b := value == "true"
			cmd.Fade = &b
		case "pulse":
			b := value == "true"
			cmd.Pulse = &b
		case "scale":
			// No bounds validation; invalid input parses to NaN and the
			// state machine decides what to do with it.
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				f = math.NaN()
			}
			cmd.Scale = &f
		case "duration":
			d, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			cmd.Duration = &d
		default:
			cmd.Unknown = append(cmd.Unknown, key)
		}
	}
	return cmd
}

// ParseNarrativeTags recognizes the narrative dialect. Only the first
// [IMAGE: ...] occurrence is honored; a [POSITION: ...] tag contributes only
// when an image description was found and its value is a known position.
// All recognized tokens are stripped from the returned text regardless of
// validity. The second return is nil when no image was requested; the third
// reports a [HIDE] token.
func ParseNarrativeTags(text string) (string, *PhotoRequest, bool) {
	var photo *PhotoRequest

	if m := imageTagRe.FindStringSubmatch(text); m != nil {
		photo = &PhotoRequest{Description: strings.TrimSpace(m[1])}
	}
	if photo != nil {
		if m := positionTagRe.FindStringSubmatch(text); m != nil {
			pos := strings.ToLower(strings.TrimSpace(m[1]))
			if IsPosition(pos) {
				photo.Position = pos
			}
		}
	}
	hide := hideTagRe.MatchString(text)

	clean := imageTagRe.ReplaceAllString(text, "")
	clean = positionTagRe.ReplaceAllString(clean, "")
	clean = hideTagRe.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean), photo, hide
}
