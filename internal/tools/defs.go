package tools

import (
	"fmt"
	"runtime"
	"strings"
)

// assetNames maps GOOS and GOARCH to the published release asset.
var assetNames = map[string]map[string]string{
	"linux": {
		"amd64": "kubescape-ubuntu-latest",
		"arm64": "kubescape-arm64-ubuntu-latest",
	},
	"darwin": {
		"amd64": "kubescape-macos-latest",
		"arm64": "kubescape-arm64-macos-latest",
	},
	"windows": {
		"amd64": "kubescape-windows-latest",
		"arm64": "kubescape-arm64-windows-latest",
	},
}

// AssetName returns the release asset for the platform. Unsupported
// combinations are an error, never an empty name.
func AssetName(goos, goarch string) (string, error) {
	perOS, ok := assetNames[goos]
	if !ok {
		return "", fmt.Errorf("kubescape has no release for %s/%s", goos, goarch)
	}
	name, ok := perOS[goarch]
	if !ok {
		return "", fmt.Errorf("kubescape has no release for %s/%s", goos, goarch)
	}
	return name, nil
}

// CurrentAssetName is AssetName for the running platform.
func CurrentAssetName() (string, error) {
	return AssetName(runtime.GOOS, runtime.GOARCH)
}

// VersionDownloadBase returns the download base for a pinned version of
// repo, on the web host that serves apiURL. Empty values use the public
// GitHub defaults.
func VersionDownloadBase(apiURL, repo, version string) string {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}
	if strings.TrimSpace(repo) == "" {
		repo = DefaultRepo
	}
	return fmt.Sprintf("https://%s/%s/releases/download/%s", apiHost(apiURL), strings.Trim(repo, "/"), strings.TrimSpace(version))
}

// AssetURL joins a download base and an asset name.
func AssetURL(base, asset string) string {
	return strings.TrimRight(base, "/") + "/" + asset
}
