package tools

import "runtime"

// InstallDocsURL points at the upstream installation guide.
const InstallDocsURL = "https://kubescape.io/docs/install-cli/"

// InstallHints returns manual install instructions for when the managed
// download cannot complete.
func InstallHints() []string {
	return installHintsFor(runtime.GOOS)
}

func installHintsFor(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"Install kubescape via Homebrew: brew install kubescape",
		}
	case "linux":
		return []string{
			"Install kubescape with the upstream script: curl -s https://raw.githubusercontent.com/kubescape/kubescape/master/install.sh | /bin/bash",
		}
	case "windows":
		return []string{
			"Install kubescape via winget: winget install kubescape",
			"or via Chocolatey: choco install kubescape",
		}
	default:
		return []string{"Download kubescape from " + InstallDocsURL}
	}
}
