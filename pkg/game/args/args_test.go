package args

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/game/profile"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/launcherr"
)

var linux64 = rules.Env{OS: "linux", Arch: "amd64", OSRelease: "6.8.0"}

func testValues() Values {
	return Values{
		NativesDir:      "/data/natives/1.20.1",
		Classpath:       "/data/libraries/a.jar:/data/versions/1.20.1/1.20.1.jar",
		MainClass:       "net.minecraft.client.main.Main",
		LibrariesDir:    "/data/libraries",
		Credentials:     profile.Credentials{Username: "Steve", UUID: "uuid-1", AccessToken: "tok", UserType: profile.MOJANG},
		VersionID:       "1.20.1",
		VersionType:     "release",
		AssetIndexID:    "5",
		GameDir:         "/data",
		AssetsDir:       "/data/assets",
		LegacyAssetsDir: "/data/resources",
		LauncherName:    "gamepipe",
		LauncherVersion: "1.0.0",
	}
}

func TestLegacyTemplate(t *testing.T) {
	got, err := BuildGameArgs(manifests.LegacyArguments{Template: "--username ${auth_player_name}"}, testValues(), linux64)
	require.NoError(t, err)
	assert.Equal(t, []string{"--username", "Steve"}, got)

	got, err = BuildGameArgs(manifests.LegacyArguments{
		Template: "  --session ${auth_session}\t--assetsDir ${game_assets}  --classpath ${classpath}",
	}, testValues(), linux64)
	require.NoError(t, err)
	// classpath is not part of the legacy set
	assert.Equal(t, []string{"--session", "token:tok:uuid-1", "--assetsDir", "/data/resources", "--classpath", "${classpath}"}, got)
}

func TestConditionalFragmentGatedByOS(t *testing.T) {
	set := manifests.ModernArguments{Game: []manifests.Argument{
		manifests.Conditional([]manifests.Rule{{Action: manifests.Allow, OS: &manifests.OSRule{Name: "osx"}}}, "--demo"),
	}}

	got, err := BuildGameArgs(set, testValues(), linux64)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = BuildGameArgs(set, testValues(), rules.Env{OS: "osx", Arch: "arm64"})
	require.NoError(t, err)
	assert.Equal(t, []string{"--demo"}, got)
}

func TestModernArgumentsKeepOrderAndUnknownTokens(t *testing.T) {
	set := manifests.ModernArguments{Game: []manifests.Argument{
		manifests.Literal("--username"),
		manifests.Literal("${auth_player_name}"),
		manifests.Conditional([]manifests.Rule{{Action: manifests.Allow, Features: map[string]bool{"is_demo_user": true}}}, "--demo"),
		manifests.Literal("--version"),
		manifests.Literal("${version_name}"),
		manifests.Literal("--quickPlayPath"),
		manifests.Literal("${quickPlayPath}"),
		manifests.Literal("--gameDir=${game_directory}/x"),
	}}

	got, err := BuildGameArgs(set, testValues(), linux64)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--username", "Steve",
		"--version", "1.20.1",
		"--quickPlayPath", "${quickPlayPath}",
		"--gameDir=/data/x",
	}, got)
}

func TestSubstitutionIsSinglePass(t *testing.T) {
	v := testValues()
	v.Credentials.Username = "${version_name}"
	got, err := BuildGameArgs(manifests.ModernArguments{Game: []manifests.Argument{manifests.Literal("${auth_player_name}")}}, v, linux64)
	require.NoError(t, err)
	assert.Equal(t, []string{"${version_name}"}, got)
}

func TestBuildJVMArgs(t *testing.T) {
	fragments := []manifests.Argument{
		manifests.Conditional([]manifests.Rule{{Action: manifests.Allow, OS: &manifests.OSRule{Name: "osx"}}}, "-XstartOnFirstThread"),
		manifests.Conditional([]manifests.Rule{{Action: manifests.Allow, OS: &manifests.OSRule{Arch: "x86"}}}, "-Xss1M"),
		manifests.Literal("-Djava.library.path=${natives_directory}"),
		manifests.Literal("-Dminecraft.launcher.brand=${launcher_name}"),
		manifests.Literal("-cp"),
		manifests.Literal("${classpath}"),
	}

	got, err := BuildJVMArgs(fragments, testValues(), linux64)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-Xss1M",
		"-Djava.library.path=/data/natives/1.20.1",
		"-Dminecraft.launcher.brand=gamepipe",
		"-cp",
		testValues().Classpath,
	}, got)
}

func TestLegacyDescriptorsGetDefaultJVMArgs(t *testing.T) {
	got, err := BuildJVMArgs(JVMFragments(manifests.LegacyArguments{Template: "x"}), testValues(), linux64)
	require.NoError(t, err)
	assert.Equal(t, []string{"-Djava.library.path=/data/natives/1.20.1", "-cp", testValues().Classpath}, got)

	modern := manifests.ModernArguments{JVM: []manifests.Argument{manifests.Literal("-Dfoo")}}
	assert.Equal(t, modern.JVM, JVMFragments(modern))
}

func TestInvalidUTF8PathIsParseError(t *testing.T) {
	v := testValues()
	v.GameDir = "/data/\xff"

	_, err := BuildGameArgs(manifests.LegacyArguments{Template: "--gameDir ${game_directory}"}, v, linux64)
	assert.ErrorIs(t, err, launcherr.ErrParse)

	_, err = BuildJVMArgs(nil, v, linux64)
	assert.ErrorIs(t, err, launcherr.ErrParse)
}

func TestNilArgumentSet(t *testing.T) {
	_, err := BuildGameArgs(nil, testValues(), linux64)
	assert.ErrorIs(t, err, launcherr.ErrParse)
}

func lib(name, path string, rs ...manifests.Rule) manifests.Library {
	return manifests.Library{
		Name:      name,
		Rules:     rs,
		Downloads: manifests.LibraryDownloads{Artifact: &manifests.Artifact{Path: path, URL: "https://x.example/" + path}},
	}
}

func TestClasspathOrderAndRules(t *testing.T) {
	libsDir := filepath.Join("data", "libraries")
	clientJar := filepath.Join("data", "versions", "1.20.1", "1.20.1.jar")

	libraries := []manifests.Library{
		lib("a:l1:1", "a/l1/1/l1-1.jar"),
		lib("a:l2:1", "a/l2/1/l2-1.jar", manifests.Rule{Action: manifests.Disallow, OS: &manifests.OSRule{Name: "linux"}}),
		lib("a:l3:1", "a/l3/1/l3-1.jar"),
		{Name: "a:natives-only:1", Natives: map[string]string{"linux": "natives-linux"}},
		lib("a:l1:1", "a/l1/1/l1-1.jar"),
	}

	cp, err := Classpath(libsDir, libraries, clientJar, linux64)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		filepath.Join(libsDir, "a", "l1", "1", "l1-1.jar"),
		filepath.Join(libsDir, "a", "l3", "1", "l3-1.jar"),
		clientJar,
	}, classpathSeparator), cp)
}

func TestClasspathExcludedLibraryLeavesOnlyIncluded(t *testing.T) {
	libraries := []manifests.Library{
		lib("a:l1:1", "l1.jar"),
		lib("a:l2:1", "l2.jar", manifests.Rule{Action: manifests.Allow, OS: &manifests.OSRule{Name: "osx"}}),
	}
	cp, err := Classpath("libs", libraries, "C.jar", linux64)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("libs", "l1.jar")+classpathSeparator+"C.jar", cp)
}

func TestClasspathRejectsInvalidPaths(t *testing.T) {
	_, err := Classpath("libs", nil, "C\xff.jar", linux64)
	assert.ErrorIs(t, err, launcherr.ErrParse)

	_, err = Classpath("libs", []manifests.Library{{Name: "broken", URL: "https://maven.example/"}}, "C.jar", linux64)
	assert.ErrorIs(t, err, launcherr.ErrParse)
}

func TestClasspathSkipsLibrariesWithoutDownload(t *testing.T) {
	libraries := []manifests.Library{
		{Name: "a:nowhere:1"},
		{Name: "a:empty-url:1", Downloads: manifests.LibraryDownloads{Artifact: &manifests.Artifact{Path: "e.jar"}}},
		{Name: "a:maven:1", URL: "https://maven.example/"},
	}
	cp, err := Classpath("libs", libraries, "C.jar", linux64)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("libs", "a", "maven", "1", "maven-1.jar")+classpathSeparator+"C.jar", cp)
}
