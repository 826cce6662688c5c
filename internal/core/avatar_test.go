package core

import "testing"

func TestAvatarContext_Key(t *testing.T) {
	tests := []struct {
		name string
		ctx  AvatarContext
		want string
	}{
		{"profile", ProfileAvatarContext(), "profile"},
		{"group", GroupAvatarContext([]byte{0xDE, 0xAD}), "group.dead"},
		{"zero value is profile", AvatarContext{}, "profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAvatarContext(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		for _, ctx := range []AvatarContext{
			ProfileAvatarContext(),
			GroupAvatarContext([]byte{0x00, 0x01, 0xFF}),
		} {
			parsed, err := ParseAvatarContext(ctx.Key())
			if err != nil {
				t.Fatalf("ParseAvatarContext(%q) error = %v", ctx.Key(), err)
			}
			if parsed.Key() != ctx.Key() {
				t.Errorf("round trip of %q produced %q", ctx.Key(), parsed.Key())
			}
		}
	})

	t.Run("rejects malformed keys", func(t *testing.T) {
		for _, key := range []string{"", "Profile", "group.", "group.zz", "channel.ab"} {
			if _, err := ParseAvatarContext(key); err == nil {
				t.Errorf("ParseAvatarContext(%q) succeeded, want error", key)
			}
		}
	})
}

func TestGroupAvatarContext_CopiesInput(t *testing.T) {
	id := []byte{0x01, 0x02}
	ctx := GroupAvatarContext(id)
	id[0] = 0xFF

	if ctx.Key() != "group.0102" {
		t.Errorf("Key() = %q after mutating input slice, want group.0102", ctx.Key())
	}
}

func TestNewIconAvatar(t *testing.T) {
	t.Run("known icon", func(t *testing.T) {
		model, err := NewIconAvatar("fox", ThemeForest)
		if err != nil {
			t.Fatalf("NewIconAvatar() error = %v", err)
		}
		if model.Identifier != "fox" || model.Kind != AvatarKindIcon || model.Theme != ThemeForest {
			t.Errorf("NewIconAvatar() = %+v", model)
		}
	})

	t.Run("unknown icon", func(t *testing.T) {
		if _, err := NewIconAvatar("unicorn", ThemeForest); err == nil {
			t.Error("NewIconAvatar() succeeded for an unknown icon")
		}
	})
}

func TestIsAvatarTheme(t *testing.T) {
	if !IsAvatarTheme(string(DefaultAvatarTheme)) {
		t.Error("default theme not recognized")
	}
	if IsAvatarTheme("neon") {
		t.Error("unknown theme tag recognized")
	}
}
