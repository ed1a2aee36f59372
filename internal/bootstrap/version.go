package bootstrap

// Version is the running application version. Overridden at build time:
//
//	go build -ldflags "-X .../internal/bootstrap.Version=1.3.0"
var Version = "1.2.0"
