package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"companion.arpa/engine/personality"
	"companion.arpa/engine/provider"
)

type fakeTextProvider struct {
	response string
	err      error
	lastOpts provider.TextOptions
	lastIn   string
}

func (f *fakeTextProvider) GenerateText(_ context.Context, input string, opts provider.TextOptions) (string, error) {
	f.lastIn = input
	f.lastOpts = opts
	return f.response, f.err
}

func TestDelegator_Enabled(t *testing.T) {
	text := &fakeTextProvider{}
	if NewDelegator(zap.NewNop(), MetaConfig{Enabled: false}, text).Enabled() {
		t.Error("Disabled flag must gate the stage off")
	}
	if NewDelegator(zap.NewNop(), MetaConfig{Enabled: true}, nil).Enabled() {
		t.Error("Missing provider must gate the stage off")
	}
	if !NewDelegator(zap.NewNop(), MetaConfig{Enabled: true}, text).Enabled() {
		t.Error("Flag + provider should enable the stage")
	}
}

func TestDelegator_Author(t *testing.T) {
	text := &fakeTextProvider{response: `  "a full creative prompt"  `}
	d := NewDelegator(zap.NewNop(), MetaConfig{Enabled: true}, text)

	pers := &personality.Profile{BaseCharacterIdentity: "android girl", PreferredClothingStyle: "hoodie"}
	out, err := d.Author(context.Background(), Parameters{Expression: "happy", AIDescription: "by the window"},
		StateSummary{Expression: "neutral", Pose: "standing", Visible: true}, pers, "long chat about rain")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != "a full creative prompt" {
		t.Errorf("Expected trimmed completion, got %q", out)
	}
	if text.lastOpts.SystemMessage == "" || !strings.Contains(text.lastOpts.SystemMessage, "creative director") {
		t.Error("System message should carry the creative director brief")
	}
	for _, want := range []string{"android girl", "hoodie", "by the window", "expression=happy", "rain"} {
		if !strings.Contains(text.lastIn, want) {
			t.Errorf("Context block missing %q:\n%s", want, text.lastIn)
		}
	}
}

func TestDelegator_AuthorErrors(t *testing.T) {
	text := &fakeTextProvider{err: errors.New("boom")}
	d := NewDelegator(zap.NewNop(), MetaConfig{Enabled: true}, text)
	if _, err := d.Author(context.Background(), Parameters{}, StateSummary{}, nil, ""); err == nil {
		t.Error("Provider failure must surface as an error for the fallback path")
	}

	text = &fakeTextProvider{response: "   "}
	d = NewDelegator(zap.NewNop(), MetaConfig{Enabled: true}, text)
	if _, err := d.Author(context.Background(), Parameters{}, StateSummary{}, nil, ""); err == nil {
		t.Error("Empty completion must surface as an error")
	}
}

func TestTruncateRunes(t *testing.T) {
	long := strings.Repeat("a", maxContextRunes+50) + "tail"
	got := truncateRunes(long, maxContextRunes)
	if len([]rune(got)) != maxContextRunes {
		t.Errorf("Expected %d runes, got %d", maxContextRunes, len([]rune(got)))
	}
	if !strings.HasSuffix(got, "tail") {
		t.Error("Truncation should keep the most recent text")
	}
}
