package tags

import (
	"math"
	"testing"
)

func TestParseCommandTags(t *testing.T) {
	clean, cmds := ParseCommandTags("Hi [AVATAR:expression=happy,action=wave]")
	if clean != "Hi" {
		t.Errorf("Expected clean text 'Hi', got %q", clean)
	}
	if len(cmds) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Expression == nil || *cmds[0].Expression != "happy" {
		t.Errorf("Expected expression 'happy', got %v", cmds[0].Expression)
	}
	if cmds[0].Action == nil || *cmds[0].Action != "wave" {
		t.Errorf("Expected action 'wave', got %v", cmds[0].Action)
	}
}

func TestParseCommandTags_MultipleTags(t *testing.T) {
	text := "[AVATAR:show=true] hello there [AVATAR:expression=curious] bye"
	clean, cmds := ParseCommandTags(text)
	if len(cmds) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Show == nil || !*cmds[0].Show {
		t.Error("Expected first command to set show=true")
	}
	if cmds[1].Expression == nil || *cmds[1].Expression != "curious" {
		t.Error("Expected second command to set expression=curious")
	}
	if clean != "hello there  bye" {
		t.Errorf("Unexpected clean text: %q", clean)
	}
}

func TestParseCommandTags_CaseAndWhitespace(t *testing.T) {
	_, cmds := ParseCommandTags("[AVATAR: Expression = happy , SCALE = 1.5 ]")
	if len(cmds) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Expression == nil || *cmds[0].Expression != "happy" {
		t.Errorf("Expected case-insensitive key match, got %v", cmds[0].Expression)
	}
	if cmds[0].Scale == nil || *cmds[0].Scale != 1.5 {
		t.Errorf("Expected scale 1.5, got %v", cmds[0].Scale)
	}
}

func TestParseCommandTags_InvalidScaleBecomesNaN(t *testing.T) {
	_, cmds := ParseCommandTags("[AVATAR:scale=big]")
	if len(cmds) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Scale == nil || !math.IsNaN(*cmds[0].Scale) {
		t.Errorf("Expected NaN scale for invalid input, got %v", cmds[0].Scale)
	}
}

func TestParseCommandTags_UnknownKeysReported(t *testing.T) {
	_, cmds := ParseCommandTags("[AVATAR:sparkle=true,expression=happy]")
	if len(cmds) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(cmds))
	}
	if len(cmds[0].Unknown) != 1 || cmds[0].Unknown[0] != "sparkle" {
		t.Errorf("Expected unknown key 'sparkle' to be reported, got %v", cmds[0].Unknown)
	}
	if cmds[0].Expression == nil {
		t.Error("Known keys should still parse alongside unknown ones")
	}
}

func TestParseCommandTags_BooleanParsing(t *testing.T) {
	_, cmds := ParseCommandTags("[AVATAR:hide=true,show=yes,fade=TRUE]")
	cmd := cmds[0]
	if cmd.Hide == nil || !*cmd.Hide {
		t.Error("Expected hide=true")
	}
	if cmd.Show == nil || *cmd.Show {
		t.Error("Expected show to parse as false for non-'true' value")
	}
	if cmd.Fade == nil || *cmd.Fade {
		t.Error("Boolean comparison is exact, 'TRUE' is not 'true'")
	}
}

func TestParseNarrativeTags(t *testing.T) {
	clean, photo, hide := ParseNarrativeTags("[IMAGE: standing in rain][POSITION: center]")
	if clean != "" {
		t.Errorf("Expected empty clean text, got %q", clean)
	}
	if hide {
		t.Error("Expected no hide request")
	}
	if photo == nil {
		t.Fatal("Expected a photo request")
	}
	if photo.Description != "standing in rain" {
		t.Errorf("Expected description 'standing in rain', got %q", photo.Description)
	}
	if photo.Position != "center" {
		t.Errorf("Expected position 'center', got %q", photo.Position)
	}
}

func TestParseNarrativeTags_PositionAloneIsNoRequest(t *testing.T) {
	clean, photo, _ := ParseNarrativeTags("[POSITION: center]")
	if photo != nil {
		t.Errorf("Position alone must not produce a request, got %+v", photo)
	}
	if clean != "" {
		t.Errorf("Position tag should still be stripped, got %q", clean)
	}
}

func TestParseNarrativeTags_InvalidPositionIgnored(t *testing.T) {
	clean, photo, _ := ParseNarrativeTags("[IMAGE: a portrait][POSITION: sideways]")
	if photo == nil {
		t.Fatal("Expected a photo request")
	}
	if photo.Position != "" {
		t.Errorf("Unknown position must be ignored, got %q", photo.Position)
	}
	if clean != "" {
		t.Errorf("Invalid position tag should still be stripped, got %q", clean)
	}
}

func TestParseNarrativeTags_FirstImageWins(t *testing.T) {
	clean, photo, _ := ParseNarrativeTags("[IMAGE: first][IMAGE: second] tail")
	if photo == nil || photo.Description != "first" {
		t.Fatalf("Expected first image tag to win, got %+v", photo)
	}
	if clean != "tail" {
		t.Errorf("All image tags should be stripped, got %q", clean)
	}
}

func TestParseNarrativeTags_Hide(t *testing.T) {
	clean, photo, hide := ParseNarrativeTags("fading out now [HIDE]")
	if !hide {
		t.Error("Expected hide request")
	}
	if photo != nil {
		t.Error("Expected no photo request")
	}
	if clean != "fading out now" {
		t.Errorf("Unexpected clean text: %q", clean)
	}
}
