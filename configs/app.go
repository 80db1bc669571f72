package configs

// AppName is the binary name, also used to identify outgoing HTTP requests.
const AppName = "deployer"

// Version is overridden at build time with -ldflags "-X github.com/crossrealm/deployer/configs.Version=...".
var Version = "dev"

func UserAgent() string {
	return AppName + "/" + Version
}
