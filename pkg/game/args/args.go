// Package args turns descriptor argument templates into the final JVM and
// game argument lists. It does no I/O.
package args

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/game/profile"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/launcherr"
)

// Values are the resolved substitutions for ${...} placeholders.
type Values struct {
	NativesDir   string
	Classpath    string
	MainClass    string
	LibrariesDir string

	Credentials profile.Credentials

	VersionID    string
	VersionType  string
	AssetIndexID string
	GameDir      string
	AssetsDir    string
	// LegacyAssetsDir backs ${game_assets} for legacy templates.
	LegacyAssetsDir string

	LauncherName    string
	LauncherVersion string

	ResolutionWidth  int
	ResolutionHeight int
}

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

func (v Values) validate() error {
	paths := map[string]string{
		"natives directory": v.NativesDir,
		"classpath":         v.Classpath,
		"libraries dir":     v.LibrariesDir,
		"game directory":    v.GameDir,
		"assets directory":  v.AssetsDir,
		"legacy assets":     v.LegacyAssetsDir,
	}
	for name, p := range paths {
		if !utf8.ValidString(p) {
			return launcherr.Parsef("%s %q is not valid UTF-8", name, p)
		}
	}
	return nil
}

func (v Values) modernTable() map[string]string {
	t := map[string]string{
		"natives_directory":   v.NativesDir,
		"launcher_name":       v.LauncherName,
		"launcher_version":    v.LauncherVersion,
		"classpath":           v.Classpath,
		"classpath_separator": classpathSeparator,
		"library_directory":   v.LibrariesDir,
		"main_class":          v.MainClass,
		"auth_player_name":    v.Credentials.Username,
		"auth_uuid":           v.Credentials.UUID,
		"auth_access_token":   v.Credentials.AccessToken,
		"auth_xuid":           "0",
		"clientid":            "0",
		"user_type":           string(v.Credentials.UserType),
		"user_properties":     "{}",
		"version_name":        v.VersionID,
		"version_type":        v.VersionType,
		"assets_index_name":   v.AssetIndexID,
		"game_directory":      v.GameDir,
		"assets_root":         v.AssetsDir,
	}
	if v.ResolutionWidth > 0 && v.ResolutionHeight > 0 {
		t["resolution_width"] = strconv.Itoa(v.ResolutionWidth)
		t["resolution_height"] = strconv.Itoa(v.ResolutionHeight)
	}
	return t
}

// legacyTable is the fixed placeholder set of minecraftArguments templates.
func (v Values) legacyTable() map[string]string {
	return map[string]string{
		"auth_player_name":  v.Credentials.Username,
		"auth_session":      "token:" + v.Credentials.AccessToken + ":" + v.Credentials.UUID,
		"auth_uuid":         v.Credentials.UUID,
		"auth_access_token": v.Credentials.AccessToken,
		"user_type":         string(v.Credentials.UserType),
		"user_properties":   "{}",
		"version_name":      v.VersionID,
		"version_type":      v.VersionType,
		"game_directory":    v.GameDir,
		"game_assets":       v.LegacyAssetsDir,
		"assets_root":       v.AssetsDir,
		"assets_index_name": v.AssetIndexID,
	}
}

// substitute replaces every known ${token} in one pass. Unknown tokens are
// kept verbatim and substituted values are never expanded again.
func substitute(s string, table map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := table[m[2:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

func expand(fragments []manifests.Argument, table map[string]string, env rules.Env) []string {
	out := []string{}
	for _, arg := range fragments {
		if arg.IsConditional() && !rules.Evaluate(arg.Rules, env) {
			continue
		}
		for _, s := range arg.Values {
			out = append(out, substitute(s, table))
		}
	}
	return out
}

// LegacyJVMArguments are the JVM flags used for descriptors that only carry
// minecraftArguments.
func LegacyJVMArguments() []manifests.Argument {
	return []manifests.Argument{
		manifests.Conditional(
			[]manifests.Rule{{Action: manifests.Allow, OS: &manifests.OSRule{Name: "osx"}}},
			"-XstartOnFirstThread",
		),
		manifests.Literal("-Djava.library.path=${natives_directory}"),
		manifests.Literal("-cp"),
		manifests.Literal("${classpath}"),
	}
}

// JVMFragments returns the JVM templates that govern set.
func JVMFragments(set manifests.ArgumentSet) []manifests.Argument {
	if modern, ok := set.(manifests.ModernArguments); ok {
		return modern.JVM
	}
	return LegacyJVMArguments()
}

// BuildJVMArgs expands the rule-gated JVM fragments in order.
func BuildJVMArgs(fragments []manifests.Argument, values Values, env rules.Env) ([]string, error) {
	if err := values.validate(); err != nil {
		return nil, err
	}
	return expand(fragments, values.modernTable(), env), nil
}

// BuildGameArgs expands the game arguments of either representation.
func BuildGameArgs(set manifests.ArgumentSet, values Values, env rules.Env) ([]string, error) {
	if err := values.validate(); err != nil {
		return nil, err
	}

	switch s := set.(type) {
	case manifests.ModernArguments:
		return expand(s.Game, values.modernTable(), env), nil
	case manifests.LegacyArguments:
		table := values.legacyTable()
		out := []string{}
		for _, field := range strings.Fields(s.Template) {
			out = append(out, substitute(field, table))
		}
		return out, nil
	case nil:
		return nil, launcherr.Parsef("no game arguments")
	default:
		return nil, launcherr.Parsef("unsupported argument set %T", set)
	}
}
