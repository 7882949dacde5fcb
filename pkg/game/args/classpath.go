package args

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/launcherr"
)

var classpathSeparator = string(os.PathListSeparator)

// Classpath joins the jars of every rule-included library, in descriptor
// order, followed by the client jar. Only libraries with a main jar (the
// ones the download pipeline fetches) contribute, and a jar listed twice
// keeps its first position.
func Classpath(librariesDir string, libraries []manifests.Library, clientJar string, env rules.Env) (string, error) {
	entries := make([]string, 0, len(libraries)+1)
	seen := map[string]bool{}

	for i := range libraries {
		lib := &libraries[i]
		if !rules.Evaluate(lib.Rules, env) {
			continue
		}

		jar, ok, err := lib.MainJar()
		if err != nil {
			return "", launcherr.Parse("library "+lib.Name, err)
		}
		if !ok {
			continue
		}
		p := filepath.Join(librariesDir, filepath.FromSlash(jar.Path))
		if seen[p] {
			continue
		}
		seen[p] = true
		entries = append(entries, p)
	}
	entries = append(entries, clientJar)

	for _, e := range entries {
		if !utf8.ValidString(e) {
			return "", launcherr.Parsef("classpath entry %q is not valid UTF-8", e)
		}
		if strings.Contains(e, classpathSeparator) {
			return "", launcherr.Parsef("classpath entry %q contains the path list separator", e)
		}
	}
	return strings.Join(entries, classpathSeparator), nil
}
