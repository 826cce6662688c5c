package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AvatarKind distinguishes the three avatar variants tracked in history.
type AvatarKind int

const (
	AvatarKindIcon AvatarKind = iota
	AvatarKindImage
	AvatarKindText
)

func (k AvatarKind) String() string {
	switch k {
	case AvatarKindIcon:
		return "icon"
	case AvatarKindImage:
		return "image"
	case AvatarKindText:
		return "text"
	default:
		return "unknown"
	}
}

// AvatarTheme is a color theme tag attached to an avatar.
type AvatarTheme string

const (
	ThemeUltramarine AvatarTheme = "ultramarine"
	ThemeCrimson     AvatarTheme = "crimson"
	ThemeVermilion   AvatarTheme = "vermilion"
	ThemeBurlap      AvatarTheme = "burlap"
	ThemeForest      AvatarTheme = "forest"
	ThemeWintergreen AvatarTheme = "wintergreen"
	ThemeTeal        AvatarTheme = "teal"
	ThemeBlue        AvatarTheme = "blue"
	ThemeIndigo      AvatarTheme = "indigo"
	ThemeViolet      AvatarTheme = "violet"
	ThemePlum        AvatarTheme = "plum"
	ThemeTaupe       AvatarTheme = "taupe"
	ThemeSteel       AvatarTheme = "steel"
)

// DefaultAvatarTheme is applied when a persisted theme tag is missing
// or no longer recognized.
const DefaultAvatarTheme = ThemeUltramarine

var avatarThemes = map[AvatarTheme]bool{
	ThemeUltramarine: true,
	ThemeCrimson:     true,
	ThemeVermilion:   true,
	ThemeBurlap:      true,
	ThemeForest:      true,
	ThemeWintergreen: true,
	ThemeTeal:        true,
	ThemeBlue:        true,
	ThemeIndigo:      true,
	ThemeViolet:      true,
	ThemePlum:        true,
	ThemeTaupe:       true,
	ThemeSteel:       true,
}

// IsAvatarTheme reports whether tag names a known color theme.
func IsAvatarTheme(tag string) bool { return avatarThemes[AvatarTheme(tag)] }

// avatarIcons is the catalog of built-in avatar icons. An icon avatar's
// identifier is the icon's raw name, so renaming an entry here orphans
// any history rows that reference the old name.
var avatarIcons = map[string]bool{
	"abstract-01": true,
	"abstract-02": true,
	"abstract-03": true,
	"balloon":     true,
	"book":        true,
	"briefcase":   true,
	"cat":         true,
	"dinosaur":    true,
	"dog":         true,
	"fox":         true,
	"ghost":       true,
	"incognito":   true,
	"panda":       true,
	"pig":         true,
	"sloth":       true,
	"soccer":      true,
	"sunset":      true,
	"surfboard":   true,
}

// IsAvatarIcon reports whether name is a known built-in icon.
func IsAvatarIcon(name string) bool { return avatarIcons[name] }

// AvatarModel identifies one historical avatar selection. Identifier is
// stable and unique within a single context's history list; for icon
// avatars it equals the icon's raw name.
type AvatarModel struct {
	Identifier string
	Kind       AvatarKind
	Theme      AvatarTheme

	// ImagePath is the absolute path of the backing image file.
	// Set only when Kind is AvatarKindImage.
	ImagePath string

	// Text is the literal overlay text. Set only when Kind is AvatarKindText.
	Text string
}

// NewIconAvatar builds an icon avatar for a built-in icon name.
// Returns an error for icon names not in the catalog.
func NewIconAvatar(icon string, theme AvatarTheme) (AvatarModel, error) {
	if !IsAvatarIcon(icon) {
		return AvatarModel{}, fmt.Errorf("unknown avatar icon: %s", icon)
	}
	return AvatarModel{Identifier: icon, Kind: AvatarKindIcon, Theme: theme}, nil
}

// NewTextAvatar builds a text avatar. The identifier must be a fresh
// unique ID so repeated selections of the same text stay distinct rows.
func NewTextAvatar(identifier, text string, theme AvatarTheme) AvatarModel {
	return AvatarModel{Identifier: identifier, Kind: AvatarKindText, Theme: theme, Text: text}
}

// NewImageAvatar builds an image avatar backed by a file on disk.
func NewImageAvatar(identifier, imagePath string, theme AvatarTheme) AvatarModel {
	return AvatarModel{Identifier: identifier, Kind: AvatarKindImage, Theme: theme, ImagePath: imagePath}
}

// AvatarContext scopes an avatar history list: either a specific group
// or the local user profile. The zero value is the profile context.
type AvatarContext struct {
	groupID []byte
}

// ProfileAvatarContext returns the local-profile context.
func ProfileAvatarContext() AvatarContext { return AvatarContext{} }

// GroupAvatarContext returns the context for a group, keyed by its raw
// group identifier bytes.
func GroupAvatarContext(groupID []byte) AvatarContext {
	return AvatarContext{groupID: append([]byte(nil), groupID...)}
}

// IsProfile reports whether this is the local-profile context.
func (c AvatarContext) IsProfile() bool { return len(c.groupID) == 0 }

// Key returns the stable string key the context's history is stored
// under: "profile" for the local profile, "group.<hex>" for a group.
func (c AvatarContext) Key() string {
	if c.IsProfile() {
		return "profile"
	}
	return "group." + hex.EncodeToString(c.groupID)
}

// ParseAvatarContext parses a context key produced by Key.
func ParseAvatarContext(key string) (AvatarContext, error) {
	if key == "profile" {
		return ProfileAvatarContext(), nil
	}
	raw, ok := strings.CutPrefix(key, "group.")
	if !ok {
		return AvatarContext{}, fmt.Errorf("malformed avatar context key: %q", key)
	}
	groupID, err := hex.DecodeString(raw)
	if err != nil || len(groupID) == 0 {
		return AvatarContext{}, fmt.Errorf("malformed group id in avatar context key: %q", key)
	}
	return GroupAvatarContext(groupID), nil
}
