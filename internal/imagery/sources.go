package imagery

import (
	"fmt"
	"path"
	"strings"

	"github.com/signalsfoundry/impact-globe/model"
)

// DefaultRemoteSources are tried after every local file.
var DefaultRemoteSources = []string{
	"https://cdn.jsdelivr.net/gh/mrdoob/three.js@dev/examples/textures/planets/earth_atmos_2048.jpg",
	"https://raw.githubusercontent.com/mrdoob/three.js/dev/examples/textures/planets/earth_atmos_2048.jpg",
}

var textureSets = []string{"earth_atmos", "land_ocean_ice_cloud"}

// Chain returns the ordered source list for a profile: textures at the
// profile's sample resolution under dir, then the 2048 base set, then
// remote. dir may be a directory path or a minio://bucket/prefix URL.
func Chain(profile model.DetailProfile, dir string, remote []string) []string {
	var out []string
	if dir != "" {
		if profile.SampleResolution > 0 && profile.SampleResolution != 2048 {
			out = append(out, texturePaths(dir, profile.SampleResolution)...)
		}
		out = append(out, texturePaths(dir, 2048)...)
	}
	return append(out, remote...)
}

func texturePaths(dir string, res int) []string {
	out := make([]string, 0, len(textureSets))
	for _, set := range textureSets {
		name := fmt.Sprintf("%s_%d.jpg", set, res)
		switch {
		case strings.Contains(dir, "://"):
			out = append(out, strings.TrimSuffix(dir, "/")+"/"+name)
		default:
			out = append(out, "file://"+path.Join(dir, name))
		}
	}
	return out
}
