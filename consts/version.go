package consts

// Version is overridden at build time with -ldflags "-X github.com/johnstarich/replayer/consts.Version=..."
var Version = "dev"
